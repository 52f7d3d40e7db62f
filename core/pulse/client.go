package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/socialpulse/desktop/core/auth"
	"github.com/socialpulse/desktop/core/httpclient"
)

// Client 封装 Social Pulse 后端的受保护接口调用。
// 所有请求自动携带 Bearer 访问令牌；配置 Refresher 后，
// 401 响应会触发一次令牌刷新并重放原请求。
type Client struct {
	http          *httpclient.Client
	logger        httpclient.Logger
	baseURL       string
	refresher     auth.Refresher
	onAuthFailure func()
	limiter       httpclient.RateLimiter
	maxUploadSize int64
}

// Option 自定义客户端配置。
type Option func(*Client)

// WithHTTPClient 注入自定义 httpclient.Client。
func WithHTTPClient(cli *httpclient.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.http = cli
		}
	}
}

// WithLogger 注入日志接口。
func WithLogger(logger httpclient.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseURL 替换默认的服务基础地址。
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRefresher 配置令牌刷新器与会话失效回调。
// onAuthFailure 在刷新失败或重试后仍返回 401 时触发。
func WithRefresher(r auth.Refresher, onAuthFailure func()) Option {
	return func(c *Client) {
		c.refresher = r
		c.onAuthFailure = onAuthFailure
	}
}

// WithRateLimiter 配置请求限流器。
func WithRateLimiter(limiter httpclient.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithMaxUploadSize 替换上传大小上限。
func WithMaxUploadSize(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxUploadSize = limit
		}
	}
}

// NewClient 创建默认客户端。凭据从 store 读取，每次请求（含重试）
// 都会重新获取当前访问令牌。
func NewClient(credStore auth.CredentialStore, opts ...Option) *Client {
	cli := &Client{
		http:          httpclient.NewClient(),
		logger:        httpclient.NopLogger{},
		baseURL:       auth.DefaultBaseURL,
		maxUploadSize: MaxUploadSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cli)
		}
	}
	if cli.http == nil {
		cli.http = httpclient.NewClient()
	}
	cli.http.Logger = cli.logger
	if cli.limiter != nil {
		cli.http.Limiter = cli.limiter
	}
	cli.http.Use(httpclient.WithBearer(auth.StoreTokenSource{Store: credStore}))
	if cli.refresher != nil {
		cli.http.Retry = httpclient.NewAuthRetryPolicy(httpclient.AuthRetryConfig{
			Refresh:       cli.refresher.Refresh,
			OnAuthFailure: cli.onAuthFailure,
			Logger:        cli.logger,
		})
	}
	return cli
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// get 发送 GET 请求并解析 JSON 响应。
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.url(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &httpclient.NetworkError{Err: err}
	}
	return c.http.Do(req, out)
}

// postJSON 发送 JSON 请求体并解析响应。请求体可重复读取以支持重试。
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &httpclient.DecodeError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return &httpclient.NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return c.http.Do(req, out)
}

func (c *Client) checkReady() error {
	if c == nil || c.http == nil {
		return WrapPulseError(ErrCodeInvalidRequest, "客户端未初始化", errors.New("pulse: Client 未初始化"))
	}
	return nil
}
