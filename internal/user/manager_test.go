package user

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardfree/card-server-go/internal/auth"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]*Record
	bans  map[string]Ban
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*Record), bans: make(map[string]Ban)}
}

func (s *memoryStore) GetUser(_ context.Context, name string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryStore) CreateUser(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Name]; ok {
		return ErrUserExists
	}
	cp := *rec
	s.users[rec.Name] = &cp
	return nil
}

func (s *memoryStore) ActivateUser(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return ErrUserNotFound
	}
	rec.Active = true
	return nil
}

func (s *memoryStore) UpdatePassword(_ context.Context, name, salt, proof string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return ErrUserNotFound
	}
	rec.Salt = salt
	rec.PasswordProof = proof
	return nil
}

func (s *memoryStore) SetAdmin(_ context.Context, name string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return ErrUserNotFound
	}
	rec.Admin = admin
	return nil
}

func (s *memoryStore) ActiveBan(_ context.Context, username string) (*Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ban, ok := s.bans[username]
	if !ok {
		return nil, nil
	}
	return &ban, nil
}

func (s *memoryStore) AddBan(_ context.Context, ban Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[ban.Username] = ban
	return nil
}

func newTestManager(t *testing.T, policy Policy) (*Manager, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	m, err := NewManager(store, store, policy, zaptest.NewLogger(t))
	require.NoError(t, err)
	return m, store
}

func login(t *testing.T, m *Manager, username, password string) (*Record, error) {
	t.Helper()
	salt, err := m.Salt(context.Background(), username)
	require.NoError(t, err)
	return m.Authenticate(context.Background(), username, auth.ComputeProof(password, salt))
}

func TestRegisterAndLogin(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})

	rec, err := m.Register(context.Background(), "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.True(t, rec.Active)

	got, err := login(t, m, "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, err = login(t, m, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestUnknownUserGetsStableFakeSalt(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})

	a, err := m.Salt(context.Background(), "ghost")
	require.NoError(t, err)
	b, err := m.Salt(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)

	// Login with the fake salt still fails generically.
	_, err = m.Authenticate(context.Background(), "ghost", auth.ComputeProof("anything", a))
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestActivationRequired(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open", RequireActivation: true})

	rec, err := m.Register(context.Background(), "bob", "bob@example.com", "secret99")
	require.NoError(t, err)
	assert.False(t, rec.Active)

	_, err = login(t, m, "bob", "secret99")
	assert.ErrorIs(t, err, ErrNotActivated)

	require.NoError(t, m.Activate(context.Background(), "bob"))
	_, err = login(t, m, "bob", "secret99")
	assert.NoError(t, err)
}

func TestBannedUserCannotLogin(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})
	_, err := m.Register(context.Background(), "carol", "", "secret99")
	require.NoError(t, err)

	require.NoError(t, m.BanUser(context.Background(), "carol", "spam", "admin", time.Time{}))
	_, err = login(t, m, "carol", "secret99")
	assert.ErrorIs(t, err, ErrBanned)
}

func TestExpiredBanIsIgnored(t *testing.T) {
	m, store := newTestManager(t, Policy{Mode: "open"})
	_, err := m.Register(context.Background(), "dave", "", "secret99")
	require.NoError(t, err)

	store.bans["dave"] = Ban{Username: "dave", Reason: "old", Until: time.Now().Add(-time.Hour)}
	_, err = login(t, m, "dave", "secret99")
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})

	_, err := m.Register(context.Background(), "ab", "", "secret99")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = m.Register(context.Background(), "-dash", "", "secret99")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = m.Register(context.Background(), "alice", "", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = m.Register(context.Background(), "alice", "", "secret99")
	require.NoError(t, err)
	_, err = m.Register(context.Background(), "alice", "", "secret99")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestGuestNamePolicy(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})
	_, err := m.Register(context.Background(), "alice", "", "secret99")
	require.NoError(t, err)

	assert.NoError(t, m.CheckGuestName(context.Background(), "visitor1"))
	assert.ErrorIs(t, m.CheckGuestName(context.Background(), "alice"), ErrUserExists)
	assert.ErrorIs(t, m.CheckGuestName(context.Background(), "x"), ErrInvalidName)

	closed, _ := newTestManager(t, Policy{Mode: "registered"})
	assert.ErrorIs(t, closed.CheckGuestName(context.Background(), "visitor1"), ErrLoginFailed)
}

func TestResetPassword(t *testing.T) {
	m, _ := newTestManager(t, Policy{Mode: "open"})
	_, err := m.Register(context.Background(), "alice", "", "secret99")
	require.NoError(t, err)

	require.NoError(t, m.ResetPassword(context.Background(), "alice", "newsecret"))

	_, err = login(t, m, "alice", "secret99")
	assert.ErrorIs(t, err, ErrLoginFailed)
	_, err = login(t, m, "alice", "newsecret")
	assert.NoError(t, err)
}
