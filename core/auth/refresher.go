package auth

import "context"

// Refresher 以刷新令牌兑换新的访问令牌，由 HTTP 层的认证重试策略
// 在收到未授权响应时回调。NeedsRefresh 供调用方在发请求前判断
// 访问令牌是否缺失或临近过期。
type Refresher interface {
	Refresh(ctx context.Context) error
	NeedsRefresh() bool
}
