package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/socialpulse/desktop/core/model"
	"github.com/socialpulse/desktop/core/store"
)

type fakeLister struct {
	datasets []model.Dataset
	err      error
	calls    int
}

func (f *fakeLister) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.datasets, nil
}

type fakeAuthenticator struct {
	cred *Credential
	user *model.User
	err  error
}

func (f *fakeAuthenticator) Login(ctx context.Context, creds Credentials) (*Credential, *model.User, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.cred, f.user, nil
}

func (f *fakeAuthenticator) Register(ctx context.Context, reg Registration) (*Credential, *model.User, error) {
	return f.Login(ctx, Credentials{})
}

func TestInitWithPersistedCredential(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	m := NewManager(credStore)

	if got := m.Snapshot().State; got != StateUnknown {
		t.Fatalf("初始状态应为 Unknown，实际 %v", got)
	}
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if got := m.Snapshot().State; got != StateAuthenticated {
		t.Fatalf("持久化凭证应直接进入已认证，实际 %v", got)
	}
}

func TestInitWithoutCredential(t *testing.T) {
	m := NewManager(store.NewMemoryStore[*Credential]())
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if got := m.Snapshot().State; got != StateUnauthenticated {
		t.Fatalf("无凭证应进入未认证，实际 %v", got)
	}
}

func TestInitHydratesActiveDataset(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	lister := &fakeLister{datasets: []model.Dataset{
		{ID: "ds-1", OriginalFilename: "jan.csv", IsActive: false},
		{ID: "ds-2", OriginalFilename: "feb.csv", IsActive: true},
	}}
	m := NewManager(credStore, WithDatasetLister(lister))

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != StateHydrated {
		t.Fatalf("应进入已水合状态，实际 %v", snap.State)
	}
	if snap.ActiveDataset == nil || snap.ActiveDataset.ID != "ds-2" {
		t.Fatalf("应选中首个激活条目，实际 %+v", snap.ActiveDataset)
	}
	if lister.calls != 1 {
		t.Fatalf("列表查询应只调用一次，实际 %d 次", lister.calls)
	}
}

func TestInitEmptyListStaysAuthenticated(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	m := NewManager(credStore, WithDatasetLister(&fakeLister{}))

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("空列表不应让 Init 报错: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != StateAuthenticated {
		t.Fatalf("空列表应保持已认证，实际 %v", snap.State)
	}
	if snap.ActiveDataset != nil {
		t.Fatalf("空列表不应设置当前数据集: %+v", snap.ActiveDataset)
	}
}

func TestInitHydrationFailureStaysAuthenticated(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	lister := &fakeLister{err: errors.New("boom")}
	m := NewManager(credStore, WithDatasetLister(lister))

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("水合失败不应让 Init 报错: %v", err)
	}
	if got := m.Snapshot().State; got != StateAuthenticated {
		t.Fatalf("水合失败应保持已认证，实际 %v", got)
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	authn := &fakeAuthenticator{
		cred: &Credential{AccessToken: "A1", RefreshToken: "R1"},
		user: &model.User{ID: 1, Username: "ana"},
	}
	m := NewManager(credStore, WithAuthenticator(authn))

	user, err := m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if user.Username != "ana" {
		t.Fatalf("用户信息不正确: %+v", user)
	}
	cred, err := credStore.LoadTokens()
	if err != nil || cred.AccessToken != "A1" {
		t.Fatalf("令牌未写入存储: %+v, %v", cred, err)
	}
	snap := m.Snapshot()
	if snap.State != StateAuthenticated || !snap.IsAuthenticated() {
		t.Fatalf("登录后状态不正确: %v", snap.State)
	}
	if snap.User == nil || snap.User.Username != "ana" {
		t.Fatalf("快照用户不正确: %+v", snap.User)
	}
}

func TestLoginFailureKeepsState(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	m := NewManager(credStore, WithAuthenticator(&fakeAuthenticator{err: errors.New("invalid password")}))
	m.Init(context.Background())

	if _, err := m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "bad"}); err == nil {
		t.Fatal("登录失败应返回错误")
	}
	if got := m.Snapshot().State; got != StateUnauthenticated {
		t.Fatalf("登录失败应保持未认证，实际 %v", got)
	}
	if _, err := credStore.LoadTokens(); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("登录失败不应写入令牌: %v", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	authn := &fakeAuthenticator{cred: &Credential{AccessToken: "A1", RefreshToken: "R1"}}
	lister := &fakeLister{datasets: []model.Dataset{{ID: "ds-1", IsActive: true}}}
	m := NewManager(credStore, WithAuthenticator(authn), WithDatasetLister(lister))

	if _, err := m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if err := m.Logout(); err != nil {
		t.Fatalf("登出失败: %v", err)
	}
	if _, err := credStore.LoadTokens(); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("登出后存储应为空: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != StateUnauthenticated || snap.ActiveDataset != nil || snap.User != nil {
		t.Fatalf("登出后派生状态未清理: %+v", snap)
	}
}

func TestExpireIsRepeatable(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	m := NewManager(credStore)
	m.Init(context.Background())

	m.Expire()
	m.Expire() // 并发 401 可能触发多次清理，必须幂等
	if got := m.Snapshot().State; got != StateUnauthenticated {
		t.Fatalf("过期后应为未认证，实际 %v", got)
	}
}

func TestSetActiveDatasetRequiresAuth(t *testing.T) {
	m := NewManager(store.NewMemoryStore[*Credential]())
	m.Init(context.Background())
	err := m.SetActiveDataset(&model.DatasetHandle{ID: "ds-1"})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("未认证时应拒绝设置数据集: %v", err)
	}
}

func TestSetActiveDatasetTransitions(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	credStore.SaveTokens(&Credential{AccessToken: "A1", RefreshToken: "R1"})
	m := NewManager(credStore)
	m.Init(context.Background())

	if err := m.SetActiveDataset(&model.DatasetHandle{ID: "ds-1", IsActive: true}); err != nil {
		t.Fatalf("设置数据集失败: %v", err)
	}
	if got := m.Snapshot().State; got != StateHydrated {
		t.Fatalf("设置数据集后应为已水合，实际 %v", got)
	}
	if err := m.SetActiveDataset(nil); err != nil {
		t.Fatalf("清除数据集失败: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != StateAuthenticated || snap.ActiveDataset != nil {
		t.Fatalf("清除后应回到已认证无资源: %+v", snap)
	}
}

func TestSubscribeObservesTransitions(t *testing.T) {
	credStore := store.NewMemoryStore[*Credential]()
	authn := &fakeAuthenticator{cred: &Credential{AccessToken: "A1", RefreshToken: "R1"}}
	m := NewManager(credStore, WithAuthenticator(authn))

	var states []State
	m.Subscribe(func(snap Snapshot) {
		states = append(states, snap.State)
	})
	m.Init(context.Background())
	m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	m.Logout()
	m.Teardown()
	m.Logout() // Teardown 后不应再收到通知

	want := []State{StateUnauthenticated, StateAuthenticated, StateUnauthenticated}
	if len(states) != len(want) {
		t.Fatalf("通知次数不正确: %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("第 %d 次通知状态不正确: %v，期望 %v", i, states[i], want[i])
		}
	}
}
