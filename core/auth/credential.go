package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential 记录当前会话的访问/刷新令牌对。
// 令牌内容一律按不透明字符串处理，存储与传输都不做校验。
type Credential struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Empty 判断是否没有可用的访问令牌。
func (c *Credential) Empty() bool {
	return c == nil || c.AccessToken == ""
}

// Clone 返回凭证的浅拷贝，避免直接暴露内部指针。
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// AccessExpiresAt 尽力解析访问令牌中的 exp 声明，仅作提前刷新的提示。
// 无法解析时返回零值，令牌仍按不透明字符串使用。
func (c *Credential) AccessExpiresAt() time.Time {
	if c == nil || c.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	// 客户端没有签名密钥，只读声明，不做校验
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
