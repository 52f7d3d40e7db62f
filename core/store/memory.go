package store

import "sync"

// MemoryStore 内存实现，用于测试与不落盘的临时会话。
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	value T
	has   bool
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

// SaveTokens 实现 TokenStore。
func (m *MemoryStore[T]) SaveTokens(tokens T) error { return m.save(tokens) }

// LoadTokens 实现 TokenStore。
func (m *MemoryStore[T]) LoadTokens() (T, error) { return m.load() }

// ClearTokens 实现 TokenStore。
func (m *MemoryStore[T]) ClearTokens() error { return m.clear() }

// SaveConfig 实现 ConfigStore。
func (m *MemoryStore[T]) SaveConfig(cfg T) error { return m.save(cfg) }

// LoadConfig 实现 ConfigStore。
func (m *MemoryStore[T]) LoadConfig() (T, error) { return m.load() }

// ClearConfig 实现 ConfigStore。
func (m *MemoryStore[T]) ClearConfig() error { return m.clear() }

func (m *MemoryStore[T]) save(value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.has = true
	return nil
}

func (m *MemoryStore[T]) load() (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.has {
		var zero T
		return zero, ErrNotFound
	}
	return m.value, nil
}

func (m *MemoryStore[T]) clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.has = false
	return nil
}
