package storefront

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.MinResponseTime = 0
	cfg.Audit.Enabled = false
	return cfg
}

type sentLink struct {
	kind  string
	to    string
	token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentLink
}

func (n *recordingNotifier) SendVerification(_ context.Context, to, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentLink{kind: "verify", to: to, token: token})
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentLink{kind: "reset", to: to, token: token})
	return nil
}

func (n *recordingNotifier) last(t *testing.T, kind string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i].token
		}
	}
	t.Fatalf("no %s link sent", kind)
	return ""
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.kind == kind {
			c++
		}
	}
	return c
}

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]*User
	byEmail map[string]string
	history map[string][]LoginRecord
	nextID  int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   map[string]*User{},
		byEmail: map[string]string{},
		history: map[string][]LoginRecord{},
	}
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *m.users[id]
	return &u, nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, in CreateUserInput) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[in.Email]; ok {
		return nil, ErrUserExists
	}
	m.nextID++
	id := "u" + strconv.Itoa(m.nextID)
	now := time.Now().UTC()
	u := &User{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Verified:     in.Verified,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[id] = u
	m.byEmail[in.Email] = id
	cp := *u
	return &cp, nil
}

func (m *mockUserProvider) update(userID string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *mockUserProvider) MarkVerified(_ context.Context, userID string) error {
	return m.update(userID, func(u *User) { u.Verified = true })
}

func (m *mockUserProvider) SetRole(_ context.Context, userID, role string) error {
	return m.update(userID, func(u *User) { u.Role = role })
}

func (m *mockUserProvider) SetActive(_ context.Context, userID string, active bool) error {
	return m.update(userID, func(u *User) { u.Active = active })
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return m.update(userID, func(u *User) { u.PasswordHash = hash })
}

func (m *mockUserProvider) SetPendingTOTPSecret(_ context.Context, userID, secret string) error {
	return m.update(userID, func(u *User) { u.TOTP.PendingSecret = secret })
}

func (m *mockUserProvider) EnableTOTP(_ context.Context, userID, secret string, counter int64) error {
	return m.update(userID, func(u *User) {
		u.TOTP = TOTPState{Enabled: true, Secret: secret, LastCounter: counter}
	})
}

func (m *mockUserProvider) DisableTOTP(_ context.Context, userID string) error {
	return m.update(userID, func(u *User) { u.TOTP = TOTPState{} })
}

func (m *mockUserProvider) UpdateTOTPCounter(_ context.Context, userID string, counter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if counter <= u.TOTP.LastCounter {
		return ErrTOTPInvalid
	}
	u.TOTP.LastCounter = counter
	return nil
}

func (m *mockUserProvider) AppendLoginHistory(_ context.Context, userID string, rec LoginRecord, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return ErrUserNotFound
	}
	h := append(m.history[userID], rec)
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	m.history[userID] = h
	return nil
}

func (m *mockUserProvider) LoginHistory(_ context.Context, userID string) ([]LoginRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	return append([]LoginRecord(nil), m.history[userID]...), nil
}

type testEnv struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	users    *mockUserProvider
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	users := newMockUserProvider()
	notifier := &recordingNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, rdb: rdb, users: users, notifier: notifier}
}

// registerVerified creates an account and confirms its email.
func (env *testEnv) registerVerified(t *testing.T, email, pw string) *PublicUser {
	t.Helper()
	ctx := context.Background()

	user, err := env.engine.Register(ctx, RegisterInput{Name: "Test User", Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !user.Verified {
		if err := env.engine.ConfirmEmailVerification(ctx, env.notifier.last(t, "verify")); err != nil {
			t.Fatalf("ConfirmEmailVerification failed: %v", err)
		}
	}
	return user
}
