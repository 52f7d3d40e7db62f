package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	coreerrors "github.com/socialpulse/desktop/core/errors"
	"github.com/socialpulse/desktop/core/httpclient"
	"github.com/socialpulse/desktop/core/model"
)

// DefaultBaseURL 为远端服务默认地址。
const DefaultBaseURL = "https://social-pulse-mxgn.onrender.com"

// Credentials 表示邮箱口令组合。
type Credentials struct {
	Email    string
	Password string
}

// Registration 表示注册信息。
type Registration struct {
	Username    string
	Email       string
	Password    string
	CompanyName string
	Role        string
}

// Endpoints 允许替换认证相关接口地址，便于测试或自定义环境。
type Endpoints struct {
	LoginURL    string
	RegisterURL string
	RefreshURL  string
}

// DefaultEndpoints 基于服务根地址构造认证接口地址。
func DefaultEndpoints(base string) Endpoints {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	return Endpoints{
		LoginURL:    base + "/auth/login/",
		RegisterURL: base + "/auth/register/",
		RefreshURL:  base + "/auth/refresh/",
	}
}

// ErrMissingCredentials 标记缺少邮箱或密码。
var ErrMissingCredentials = coreerrors.New(coreerrors.ErrCodeInvalidArgument, "auth: 缺少登录凭证")

// LoginClient 负责登录与注册的令牌签发流程。
type LoginClient struct {
	client    *httpclient.Client
	logger    httpclient.Logger
	endpoints Endpoints
}

// LoginOption 自定义登录客户端。
type LoginOption func(*LoginClient)

// WithLoginLogger 注入日志。
func WithLoginLogger(logger httpclient.Logger) LoginOption {
	return func(l *LoginClient) {
		l.logger = logger
	}
}

// WithLoginEndpoints 替换默认接口地址。
func WithLoginEndpoints(ep Endpoints) LoginOption {
	return func(l *LoginClient) {
		l.endpoints = ep
	}
}

// NewLoginClient 创建登录客户端。传入的 httpclient 不应携带认证重试策略。
func NewLoginClient(client *httpclient.Client, opts ...LoginOption) *LoginClient {
	if client == nil {
		client = httpclient.NewClient()
	}
	l := &LoginClient{
		client:    client,
		logger:    httpclient.NopLogger{},
		endpoints: DefaultEndpoints(""),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.logger == nil {
		l.logger = httpclient.NopLogger{}
	}
	return l
}

// tokenBundle 匹配登录/注册响应中的令牌结构。
type tokenBundle struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authResponse struct {
	User   *model.User `json:"user"`
	Tokens tokenBundle `json:"tokens"`
}

// Login 以邮箱口令换取令牌对。
func (l *LoginClient) Login(ctx context.Context, creds Credentials) (*Credential, *model.User, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, nil, ErrMissingCredentials
	}
	payload := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}
	return l.exchange(ctx, l.endpoints.LoginURL, payload)
}

// Register 注册新用户，成功时服务端直接签发令牌对。
func (l *LoginClient) Register(ctx context.Context, reg Registration) (*Credential, *model.User, error) {
	if reg.Email == "" || reg.Password == "" || reg.Username == "" {
		return nil, nil, ErrMissingCredentials
	}
	payload := map[string]string{
		"username":     reg.Username,
		"email":        reg.Email,
		"password":     reg.Password,
		"company_name": reg.CompanyName,
		"role":         reg.Role,
	}
	return l.exchange(ctx, l.endpoints.RegisterURL, payload)
}

func (l *LoginClient) exchange(ctx context.Context, url string, payload map[string]string) (*Credential, *model.User, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var rsp authResponse
	if err := l.client.Do(req, &rsp); err != nil {
		return nil, nil, err
	}
	if rsp.Tokens.Access == "" || rsp.Tokens.Refresh == "" {
		return nil, nil, coreerrors.New(coreerrors.ErrCodeInvalidState, "auth: 响应缺少令牌")
	}
	l.logger.Debugf("令牌签发成功")
	return &Credential{
		AccessToken:  rsp.Tokens.Access,
		RefreshToken: rsp.Tokens.Refresh,
	}, rsp.User, nil
}
