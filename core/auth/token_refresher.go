package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	coreerrors "github.com/socialpulse/desktop/core/errors"
	"github.com/socialpulse/desktop/core/httpclient"
)

// 访问令牌临近过期的提前刷新窗口。
const refreshAhead = 30 * time.Second

// TokenRefresher 以刷新令牌兑换新的访问令牌并写回存储。
// 单飞语义：并发触发的刷新只有第一个发起网络调用，其余等待同一结果，
// 互不相关的请求不会被正在进行的刷新阻塞。
type TokenRefresher struct {
	client     *httpclient.Client
	store      CredentialStore
	refreshURL string
	timeout    time.Duration
	logger     httpclient.Logger
	now        func() time.Time

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// TokenRefresherOption 自定义刷新器。
type TokenRefresherOption func(*TokenRefresher)

// WithRefreshTimeout 替换刷新请求的超时上限。
func WithRefreshTimeout(d time.Duration) TokenRefresherOption {
	return func(r *TokenRefresher) {
		r.timeout = d
	}
}

// WithRefresherLogger 注入日志。
func WithRefresherLogger(logger httpclient.Logger) TokenRefresherOption {
	return func(r *TokenRefresher) {
		r.logger = logger
	}
}

// WithRefresherNow 替换时间来源，便于测试。
func WithRefresherNow(now func() time.Time) TokenRefresherOption {
	return func(r *TokenRefresher) {
		r.now = now
	}
}

// NewTokenRefresher 创建刷新器。
func NewTokenRefresher(client *httpclient.Client, store CredentialStore, refreshURL string, opts ...TokenRefresherOption) *TokenRefresher {
	if client == nil {
		client = httpclient.NewClient()
	}
	r := &TokenRefresher{
		client:     client,
		store:      store,
		refreshURL: refreshURL,
		timeout:    15 * time.Second,
		logger:     httpclient.NopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = httpclient.NopLogger{}
	}
	return r
}

// Refresh 兑换新的访问令牌。已有刷新在途时加入等待，不追加网络调用。
func (r *TokenRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if call := r.inflight; call != nil {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	r.inflight = call
	r.mu.Unlock()

	call.err = r.doRefresh(ctx)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(call.done)
	return call.err
}

// NeedsRefresh 判断访问令牌是否缺失或临近过期。
func (r *TokenRefresher) NeedsRefresh() bool {
	cred, err := loadCredential(r.store)
	if err != nil || cred == nil || cred.RefreshToken == "" {
		return false
	}
	if cred.AccessToken == "" {
		return true
	}
	exp := cred.AccessExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !r.now().Add(refreshAhead).Before(exp)
}

func (r *TokenRefresher) doRefresh(ctx context.Context) error {
	if r.store == nil {
		return ErrCredentialStoreNil
	}
	cred, err := loadCredential(r.store)
	if err != nil {
		return err
	}
	if cred == nil || cred.RefreshToken == "" {
		return ErrRefreshTokenMissing
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	payload, err := json.Marshal(map[string]string{"refresh": cred.RefreshToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// 直接走底层 http.Client，刷新请求不能再经过认证重试策略
	resp, err := r.client.HTTP.Do(req)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrCodeRefreshFailed, "auth: 刷新请求失败", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, resp.Body)
		return coreerrors.New(coreerrors.ErrCodeRefreshFailed,
			fmt.Sprintf("auth: 刷新令牌被拒绝，状态码 %d", resp.StatusCode))
	}
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return coreerrors.Wrap(coreerrors.ErrCodeRefreshFailed, "auth: 刷新响应解码失败", err)
	}
	if out.Access == "" {
		return coreerrors.New(coreerrors.ErrCodeRefreshFailed, "auth: 刷新响应缺少访问令牌")
	}
	next := &Credential{AccessToken: out.Access, RefreshToken: cred.RefreshToken}
	if out.Refresh != "" {
		// 服务端开启轮换时会同时下发新的刷新令牌
		next.RefreshToken = out.Refresh
	}
	if err := r.store.SaveTokens(next); err != nil {
		return err
	}
	r.logger.Debugf("访问令牌已刷新")
	return nil
}
