package crypto

import "crypto/rand"

// SecureRandomBytes 生成指定长度的安全随机字节。
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
