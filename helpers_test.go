package dualAuth

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/dualAuth/connectivity"
	"github.com/MrEthical07/dualAuth/session"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRepo struct {
	mu        sync.Mutex
	users     map[string]*User
	passwords map[string]string
	nextID    int

	getErr   error
	clearErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     map[string]*User{},
		passwords: map[string]string{},
	}
}

func (r *fakeRepo) add(id, email, name, role, pw string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &User{ID: id, Email: email, Name: name, Role: role}
	r.passwords[id] = pw
}

func (r *fakeRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *fakeRepo) pending(id string) PendingVerification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id].Pending
}

func (r *fakeRepo) password(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwords[id]
}

func (r *fakeRepo) GetUserByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) VerifyPassword(_ context.Context, u *User, pw string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwords[u.ID] == pw, nil
}

func (r *fakeRepo) ChangePassword(_ context.Context, id, pw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	r.passwords[id] = pw
	return nil
}

func (r *fakeRepo) SavePendingVerification(_ context.Context, id string, p PendingVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Pending = p
	return nil
}

func (r *fakeRepo) ClearPendingVerification(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	if u, ok := r.users[id]; ok {
		u.Pending = PendingVerification{}
	}
	return nil
}

// consumingRepo adds compare-and-clear of pending codes to fakeRepo.
type consumingRepo struct {
	*fakeRepo
}

func (r consumingRepo) ConsumePendingVerification(_ context.Context, id string, seen PendingVerification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || seen.Empty() {
		return false, nil
	}
	p := u.Pending
	if p.OTP != seen.OTP || p.OfflineCodeHash != seen.OfflineCodeHash ||
		!p.OTPExpires.Equal(seen.OTPExpires) || !p.OfflineCodeExpires.Equal(seen.OfflineCodeExpires) {
		return false, nil
	}
	u.Pending = PendingVerification{}
	return true, nil
}

type creatingRepo struct {
	*fakeRepo
}

func (r creatingRepo) CreateUser(_ context.Context, a NewAccount) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, a.Email) {
			return nil, ErrAccountExists
		}
	}
	r.nextID++
	id := "new-" + string(rune('0'+r.nextID))
	r.users[id] = &User{ID: id, Email: a.Email, Name: a.Name, Role: a.Role}
	r.passwords[id] = a.Password
	cp := *r.users[id]
	return &cp, nil
}

type sentCode struct {
	to   string
	code string
}

type captureMailer struct {
	codes  chan sentCode
	resets chan string
	err    error
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{
		codes:  make(chan sentCode, 8),
		resets: make(chan string, 8),
	}
}

func (m *captureMailer) SendLoginCode(_ context.Context, to, _, code string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.codes <- sentCode{to: to, code: code}
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, _, link string, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.resets <- link
	return nil
}

func (m *captureMailer) waitCode(t *testing.T) sentCode {
	t.Helper()
	select {
	case c := <-m.codes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no login code mailed")
		return sentCode{}
	}
}

type harness struct {
	engine *Engine
	repo   *fakeRepo
	mailer *captureMailer
	clock  *fakeClock
	store  *session.MemoryStore
	events *ChannelSink
}

type harnessOption func(*Config, *Builder)

func online(on bool) harnessOption {
	return func(_ *Config, b *Builder) {
		b.WithConnectivity(connectivity.Static(on))
	}
}

func withConfig(f func(*Config)) harnessOption {
	return func(c *Config, _ *Builder) { f(c) }
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testKey
	return cfg
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Now()}
	repo := newFakeRepo()
	repo.add("u1", "ana@example.com", "Ana Pérez", "user", "Correct#Horse42")
	repo.add("admin", "boss@example.com", "Boss", "admin", "Admin#Secret77x")

	store := session.NewMemoryStore().WithClock(clock.Now)
	mailer := newCaptureMailer()
	events := NewChannelSink(256)

	cfg := testConfig()
	b := New().
		WithUserRepository(repo).
		WithMailer(mailer).
		WithSessionStore(store).
		WithAuditSink(events).
		WithLogger(log.New(io.Discard, "", 0)).
		WithConnectivity(connectivity.Static(true))
	for _, opt := range opts {
		opt(&cfg, b)
	}
	b.WithConfig(cfg)

	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	e.now = clock.Now
	t.Cleanup(e.Close)

	return &harness{engine: e, repo: repo, mailer: mailer, clock: clock, store: store, events: events}
}

// signIn completes an online login for u1 and returns the token.
func (h *harness) signIn(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if _, err := h.engine.Login(ctx, "ana@example.com", "Correct#Horse42"); err != nil {
		t.Fatalf("login: %v", err)
	}
	sent := h.mailer.waitCode(t)
	res, err := h.engine.VerifyCode(ctx, "u1", sent.code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res.Token
}

func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	res, err := h.engine.IssueFederatedToken(context.Background(), "admin", "google")
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return res.Token
}

// eventTypes closes the engine so every buffered event is delivered.
func (h *harness) eventTypes() []string {
	h.engine.Close()
	var out []string
	for {
		select {
		case ev := <-h.events.Events():
			out = append(out, ev.EventType)
		default:
			return out
		}
	}
}

func hasEvent(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func mustKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("KindOf(%v) = %s, want %s", err, got, want)
	}
}

var errBoom = errors.New("boom")
