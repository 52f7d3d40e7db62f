package store

import coreerrors "github.com/socialpulse/desktop/core/errors"

// ErrNotFound 用于标记存储中不存在记录。
var ErrNotFound = coreerrors.New(coreerrors.ErrCodeNotFound, "store: 未找到记录")

// TokenStore 抽象 access/refresh token 的持久化。
type TokenStore[T any] interface {
	SaveTokens(tokens T) error
	LoadTokens() (T, error)
	ClearTokens() error
}

// ConfigStore 抽象用户偏好或客户端配置的存储。
type ConfigStore[T any] interface {
	SaveConfig(cfg T) error
	LoadConfig() (T, error)
	ClearConfig() error
}
