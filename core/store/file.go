package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/socialpulse/desktop/core/crypto"
	coreerrors "github.com/socialpulse/desktop/core/errors"
)

// FileStore 将记录以 JSON 形式持久化到单个文件，可选静态加密。
// 写入采用临时文件加重命名，保证读到的内容要么是旧版本要么是新版本。
type FileStore[T any] struct {
	path string
	key  []byte
}

// FileOption 配置 FileStore。
type FileOption[T any] func(*FileStore[T])

// WithCipherKey 启用静态加密，key 需为 16/24/32 字节（AES）。
func WithCipherKey[T any](key []byte) FileOption[T] {
	return func(s *FileStore[T]) {
		s.key = key
	}
}

// NewFileStore 创建文件存储，path 为记录文件完整路径。
func NewFileStore[T any](path string, opts ...FileOption[T]) (*FileStore[T], error) {
	if path == "" {
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidArgument, "store: 文件路径不能为空")
	}
	s := &FileStore[T]{path: path}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SaveTokens 实现 TokenStore。
func (s *FileStore[T]) SaveTokens(tokens T) error { return s.save(tokens) }

// LoadTokens 实现 TokenStore。
func (s *FileStore[T]) LoadTokens() (T, error) { return s.load() }

// ClearTokens 实现 TokenStore，两个令牌随文件一并删除。
func (s *FileStore[T]) ClearTokens() error { return s.clear() }

// SaveConfig 实现 ConfigStore。
func (s *FileStore[T]) SaveConfig(cfg T) error { return s.save(cfg) }

// LoadConfig 实现 ConfigStore。
func (s *FileStore[T]) LoadConfig() (T, error) { return s.load() }

// ClearConfig 实现 ConfigStore。
func (s *FileStore[T]) ClearConfig() error { return s.clear() }

func (s *FileStore[T]) save(value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrCodeInvalidArgument, "store: 序列化失败", err)
	}
	if len(s.key) > 0 {
		data, err = crypto.Seal(s.key, data)
		if err != nil {
			return coreerrors.Wrap(coreerrors.ErrCodeInvalidConfig, "store: 加密失败", err)
		}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *FileStore[T]) load() (T, error) {
	var zero T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	if len(s.key) > 0 {
		data, err = crypto.Open(s.key, data)
		if err != nil {
			return zero, coreerrors.Wrap(coreerrors.ErrCodeInvalidConfig, "store: 解密失败", err)
		}
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, coreerrors.Wrap(coreerrors.ErrCodeInvalidState, "store: 反序列化失败", err)
	}
	return value, nil
}

func (s *FileStore[T]) clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
