package auth

import (
	"errors"

	coreerrors "github.com/socialpulse/desktop/core/errors"
	"github.com/socialpulse/desktop/core/store"
)

// CredentialStore 持久化当前会话的令牌对，是授权头唯一的事实来源。
type CredentialStore = store.TokenStore[*Credential]

var (
	// ErrCredentialStoreNil 在未注入存储时返回。
	ErrCredentialStoreNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "auth: CredentialStore 未设置")
	// ErrRefreshTokenMissing 在没有刷新令牌可兑换时返回，不发起网络调用。
	ErrRefreshTokenMissing = coreerrors.New(coreerrors.ErrCodeRefreshFailed, "auth: 缺少刷新令牌")
)

// loadCredential 读取存储中的凭证，缺失视为未登录而非错误。
func loadCredential(s CredentialStore) (*Credential, error) {
	if s == nil {
		return nil, ErrCredentialStoreNil
	}
	cred, err := s.LoadTokens()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cred, nil
}

// StoreTokenSource 将 CredentialStore 适配成 httpclient.TokenSource，
// 每次取值都重新读取存储，刷新后的重试因此拿到最新令牌。
type StoreTokenSource struct {
	Store CredentialStore
}

// AccessToken 实现 httpclient.TokenSource。
func (s StoreTokenSource) AccessToken() string {
	cred, err := loadCredential(s.Store)
	if err != nil || cred == nil {
		return ""
	}
	return cred.AccessToken
}
