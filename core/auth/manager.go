package auth

import (
	"context"
	"sync"

	coreerrors "github.com/socialpulse/desktop/core/errors"
	"github.com/socialpulse/desktop/core/httpclient"
	"github.com/socialpulse/desktop/core/model"
)

var (
	// ErrNotAuthenticated 在未认证状态下执行需要会话的操作时返回。
	ErrNotAuthenticated = coreerrors.New(coreerrors.ErrCodeInvalidState, "auth: 当前未认证")
	// ErrAuthenticatorNil 在未注入登录客户端时返回。
	ErrAuthenticatorNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "auth: 未配置登录客户端")
)

// DatasetLister 提供启动水合所需的数据集列表查询。
type DatasetLister interface {
	ListDatasets(ctx context.Context) ([]model.Dataset, error)
}

// Authenticator 执行登录与注册，由 LoginClient 实现。
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*Credential, *model.User, error)
	Register(ctx context.Context, reg Registration) (*Credential, *model.User, error)
}

// Listener 接收会话快照变更。
type Listener func(Snapshot)

// Manager 是显式注入的会话服务：维护认证状态与当前数据集，
// 凭证存储只由 Login、刷新器与 Logout/Expire 写入。
type Manager struct {
	mu        sync.RWMutex
	state     State
	active    *model.DatasetHandle
	user      *model.User
	listeners []Listener

	store    CredentialStore
	login    Authenticator
	datasets DatasetLister
	logger   httpclient.Logger
}

// ManagerOption 配置会话管理器。
type ManagerOption func(*Manager)

// WithAuthenticator 注入登录客户端。
func WithAuthenticator(a Authenticator) ManagerOption {
	return func(m *Manager) {
		m.login = a
	}
}

// WithDatasetLister 注入数据集列表查询，用于启动水合。
func WithDatasetLister(l DatasetLister) ManagerOption {
	return func(m *Manager) {
		m.datasets = l
	}
}

// WithManagerLogger 注入日志。
func WithManagerLogger(logger httpclient.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager 创建会话管理器，初始状态为 Unknown。
func NewManager(store CredentialStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		state:  StateUnknown,
		store:  store,
		logger: httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.logger == nil {
		m.logger = httpclient.NopLogger{}
	}
	return m
}

// Init 执行启动检查：读取凭证存储，存在访问令牌则乐观置为已认证，
// 并尝试从远端解析当前数据集。水合中的鉴权失败由 HTTP 客户端的
// 失败协议处理（触发 Expire），这里不重复该逻辑；其余水合失败仅记录，
// 会话保持已认证但无资源。
func (m *Manager) Init(ctx context.Context) error {
	cred, err := loadCredential(m.store)
	if err != nil {
		return err
	}
	if cred.Empty() {
		m.transition(StateUnauthenticated, nil, nil)
		return nil
	}
	m.transition(StateAuthenticated, nil, nil)
	if err := m.Hydrate(ctx); err != nil {
		m.logger.Errorf("启动水合失败: %v", err)
	}
	return nil
}

// Hydrate 查询数据集列表并将首个 is_active 条目设为当前数据集。
// 列表为空时保持已认证、无资源，只记录一条日志。
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.datasets == nil {
		return nil
	}
	m.mu.RLock()
	authenticated := m.state.Authenticated()
	m.mu.RUnlock()
	if !authenticated {
		return ErrNotAuthenticated
	}
	list, err := m.datasets.ListDatasets(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].IsActive {
			m.mu.Lock()
			// 水合期间可能已被登出，不能覆盖未认证状态
			if !m.state.Authenticated() {
				m.mu.Unlock()
				return nil
			}
			m.state = StateHydrated
			m.active = list[i].Handle()
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.notify(snap)
			return nil
		}
	}
	m.logger.Debugf("数据集列表中没有激活条目，会话保持无资源状态")
	return nil
}

// Login 以邮箱口令登录：写入令牌、同步置为已认证，随后尽力水合。
func (m *Manager) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	return m.authenticate(ctx, func() (*Credential, *model.User, error) {
		return m.login.Login(ctx, creds)
	})
}

// Register 注册新用户并直接建立会话。
func (m *Manager) Register(ctx context.Context, reg Registration) (*model.User, error) {
	return m.authenticate(ctx, func() (*Credential, *model.User, error) {
		return m.login.Register(ctx, reg)
	})
}

func (m *Manager) authenticate(ctx context.Context, exchange func() (*Credential, *model.User, error)) (*model.User, error) {
	if m.login == nil {
		return nil, ErrAuthenticatorNil
	}
	if m.store == nil {
		return nil, ErrCredentialStoreNil
	}
	cred, user, err := exchange()
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveTokens(cred); err != nil {
		return nil, err
	}
	m.transition(StateAuthenticated, nil, user)
	if err := m.Hydrate(ctx); err != nil {
		m.logger.Errorf("登录后水合失败: %v", err)
	}
	return user, nil
}

// Logout 清除凭证存储与全部派生状态，回到未认证。
func (m *Manager) Logout() error {
	var clearErr error
	if m.store != nil {
		clearErr = m.store.ClearTokens()
	}
	m.transition(StateUnauthenticated, nil, nil)
	return clearErr
}

// Expire 在会话不可恢复时执行登出清理，供 HTTP 客户端的
// OnAuthFailure 钩子调用，可重复触发。
func (m *Manager) Expire() {
	if err := m.Logout(); err != nil {
		m.logger.Errorf("会话过期清理失败: %v", err)
	} else {
		m.logger.Debugf("会话已过期，凭证与状态已清理")
	}
}

// SetActiveDataset 更新当前数据集，仅在已认证状态下允许。
// 传入 nil 表示回到已认证但无资源的状态。
func (m *Manager) SetActiveDataset(handle *model.DatasetHandle) error {
	m.mu.Lock()
	if !m.state.Authenticated() {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.active = handle.Clone()
	if handle == nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateHydrated
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
	return nil
}

// Snapshot 返回当前会话快照。
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe 注册状态变更回调，回调在状态切换后同步执行。
func (m *Manager) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Teardown 释放全部监听者，管理器随后可被丢弃。
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.listeners = nil
	m.mu.Unlock()
}

func (m *Manager) transition(state State, active *model.DatasetHandle, user *model.User) {
	m.mu.Lock()
	m.state = state
	m.active = active
	if state.Authenticated() {
		if user != nil {
			m.user = user
		}
	} else {
		m.user = nil
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:         m.state,
		ActiveDataset: m.active.Clone(),
		User:          m.user,
	}
}

func (m *Manager) notify(snap Snapshot) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
