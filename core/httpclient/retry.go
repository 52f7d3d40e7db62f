package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy 定义重试策略。
type RetryPolicy interface {
	ShouldRetry(req *http.Request, err error, attempt int) (bool, time.Duration, error)
}

// AuthRetryConfig 配置认证重试策略。
type AuthRetryConfig struct {
	// Refresh 兑换新访问令牌，通常指向 auth.TokenRefresher.Refresh。
	Refresh func(ctx context.Context) error
	// OnAuthFailure 在会话不可恢复时触发，负责清理凭证与会话状态。
	OnAuthFailure func()
	Logger        Logger
}

// AuthRetryPolicy 只处理鉴权失败：同一逻辑请求最多刷新重试一次，
// 刷新后仍被拒绝视为会话终结。网络错误、服务端错误与业务校验错误
// 一律原样返回给调用方，不做解读。
type AuthRetryPolicy struct {
	refresh   func(ctx context.Context) error
	onFailure func()
	logger    Logger
}

// NewAuthRetryPolicy 创建认证重试策略。
func NewAuthRetryPolicy(cfg AuthRetryConfig) *AuthRetryPolicy {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	return &AuthRetryPolicy{
		refresh:   cfg.Refresh,
		onFailure: cfg.OnAuthFailure,
		logger:    logger,
	}
}

// ShouldRetry 实现 RetryPolicy。刷新失败时返回 false 且不附加错误，
// 调用方收到的仍是原始的未授权错误。
func (p *AuthRetryPolicy) ShouldRetry(req *http.Request, err error, attempt int) (bool, time.Duration, error) {
	if p == nil {
		return false, 0, nil
	}
	var ae *APIError
	if !errors.As(err, &ae) || !ae.Unauthorized() {
		return false, 0, nil
	}
	if attempt >= 1 {
		// 刷新后的请求仍被拒绝，不再进入新的刷新循环
		p.logger.Errorf("刷新后仍被拒绝，执行登出清理")
		p.fail()
		return false, 0, nil
	}
	if p.refresh == nil {
		p.fail()
		return false, 0, nil
	}
	ctx := context.Background()
	if req != nil {
		ctx = req.Context()
	}
	if refreshErr := p.refresh(ctx); refreshErr != nil {
		if ctx.Err() != nil {
			// 调用方取消的是自己的请求，共享的刷新可能仍会成功，
			// 不做会话清理，把取消原样交还给调用方
			return false, 0, refreshErr
		}
		p.logger.Errorf("刷新访问令牌失败: %v", refreshErr)
		p.fail()
		return false, 0, nil
	}
	p.logger.Debugf("访问令牌已刷新，重试原请求")
	return true, 0, nil
}

func (p *AuthRetryPolicy) fail() {
	if p.onFailure != nil {
		p.onFailure()
	}
}
