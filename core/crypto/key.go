package crypto

import "golang.org/x/crypto/scrypt"

// KeyParams 控制 scrypt 派生参数。
type KeyParams struct {
	N      int
	R      int
	P      int
	KeyLen int
}

// DefaultKeyParams 返回交互式场景下的推荐参数。
func DefaultKeyParams() KeyParams {
	return KeyParams{N: 1 << 15, R: 8, P: 1, KeyLen: 32}
}

// DeriveKey 由口令与盐派生对称密钥。
func DeriveKey(secret, salt []byte, params KeyParams) ([]byte, error) {
	if params.N == 0 {
		params = DefaultKeyParams()
	}
	return scrypt.Key(secret, salt, params.N, params.R, params.P, params.KeyLen)
}
