package auth

import "github.com/socialpulse/desktop/core/model"

// State 表示会话状态机的当前状态。
type State int

const (
	// StateUnknown 是启动检查完成前的初始状态。
	StateUnknown State = iota
	// StateUnauthenticated 表示没有可用凭证。
	StateUnauthenticated
	// StateAuthenticated 表示本地存在访问令牌（乐观判定，
	// 不代表服务端仍然认可）。
	StateAuthenticated
	// StateHydrated 表示已认证且已解析出当前操作的数据集。
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateHydrated:
		return "hydrated"
	default:
		return "invalid"
	}
}

// Authenticated 判断是否处于已认证状态（含已水合）。
func (s State) Authenticated() bool {
	return s == StateAuthenticated || s == StateHydrated
}

// Snapshot 是对外暴露的会话快照，字段均为拷贝。
type Snapshot struct {
	State         State
	ActiveDataset *model.DatasetHandle
	User          *model.User
}

// IsAuthenticated 判断快照是否处于已认证状态。
func (s Snapshot) IsAuthenticated() bool {
	return s.State.Authenticated()
}
