package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardfree/card-server-go/internal/protocol"
)

func TestLoginHandshake(t *testing.T) {
	s := newSession("s1")
	assert.Equal(t, StateConnecting, s.State())

	require.NoError(t, s.BeginSaltRequest())
	assert.Equal(t, StateGettingPasswordSalt, s.State())

	// Asking for the salt twice is fine.
	require.NoError(t, s.BeginSaltRequest())

	require.NoError(t, s.BeginLogin())
	require.NoError(t, s.LoginSucceeded("alice", false))
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "alice", s.Username())
}

func TestGuestLoginSkipsSaltExchange(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.BeginLogin())
	require.NoError(t, s.LoginSucceeded("guest42", false))
	assert.True(t, s.LoggedIn())
}

func TestFailedLoginReturnsToConnecting(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.BeginSaltRequest())
	require.NoError(t, s.BeginLogin())
	require.NoError(t, s.LoginFailed())
	assert.Equal(t, StateConnecting, s.State())
	assert.Empty(t, s.Username())

	// The client may retry the whole exchange.
	require.NoError(t, s.BeginSaltRequest())
	require.NoError(t, s.BeginLogin())
	require.NoError(t, s.LoginSucceeded("alice", false))
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	s := newSession("s1")

	// Cannot complete a login that never started.
	assert.ErrorIs(t, s.LoginSucceeded("alice", false), ErrInvalidState)
	assert.Equal(t, StateConnecting, s.State())

	require.NoError(t, s.BeginLogin())
	assert.ErrorIs(t, s.BeginRegistration(), ErrInvalidState)
	assert.Equal(t, StateLoggingIn, s.State())

	require.NoError(t, s.LoginSucceeded("alice", false))
	assert.ErrorIs(t, s.BeginLogin(), ErrInvalidState)
	assert.True(t, s.LoggedIn())
}

func TestRegistrationAndActivation(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.BeginRegistration())
	require.NoError(t, s.RegistrationDone())
	assert.Equal(t, StateConnecting, s.State())

	require.NoError(t, s.BeginActivation())
	require.NoError(t, s.LoginSucceeded("alice", false))
	assert.True(t, s.LoggedIn())
}

func TestActivationFailure(t *testing.T) {
	s := newSession("s1")
	require.NoError(t, s.BeginActivation())
	require.NoError(t, s.ActivationFailed())
	assert.Equal(t, StateConnecting, s.State())
}

func TestDisconnectedAcceptsNothing(t *testing.T) {
	s := newSession("s1")
	s.MarkDisconnected()
	assert.ErrorIs(t, s.BeginSaltRequest(), ErrInvalidState)
	assert.ErrorIs(t, s.BeginLogin(), ErrInvalidState)
	assert.ErrorIs(t, s.BeginRegistration(), ErrInvalidState)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestOutboxOverflowDropsWithoutBlocking(t *testing.T) {
	s := newSession("s1")
	env := &protocol.Envelope{Session: &protocol.SessionEvent{Type: protocol.SessionEventServerMessage}}

	for i := 0; i < sendQueueSize; i++ {
		require.True(t, s.Enqueue(env))
	}
	assert.False(t, s.Enqueue(env))

	// Draining one slot makes room again.
	<-s.Outbox()
	assert.True(t, s.Enqueue(env))
}

func TestEnqueueAfterClose(t *testing.T) {
	s := newSession("s1")
	s.Close()
	s.Close()
	assert.False(t, s.Enqueue(&protocol.Envelope{}))
	assert.Equal(t, StateDisconnected, s.State())

	_, open := <-s.Outbox()
	assert.False(t, open)
}

func TestManagerBindAndReplace(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))

	first := m.CreateSession()
	require.NoError(t, first.BeginLogin())
	require.NoError(t, first.LoginSucceeded("alice", false))
	assert.Nil(t, m.BindUser("alice", first.ID))

	got, ok := m.SessionForUser("alice")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	// A second login for the same user surfaces the old session.
	second := m.CreateSession()
	prev := m.BindUser("alice", second.ID)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID, prev.ID)

	assert.Equal(t, []string{"alice"}, m.OnlineUsers())
}

func TestManagerRemoveSession(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))

	s := m.CreateSession()
	require.NoError(t, s.BeginLogin())
	require.NoError(t, s.LoginSucceeded("alice", false))
	m.BindUser("alice", s.ID)

	m.RemoveSession(s.ID)
	assert.Equal(t, 0, m.SessionCount())
	_, ok := m.SessionForUser("alice")
	assert.False(t, ok)
	assert.False(t, s.Enqueue(&protocol.Envelope{}))
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	a := m.CreateSession()
	b := m.CreateSession()

	m.CloseAll()
	assert.Equal(t, 0, m.SessionCount())
	assert.False(t, a.Enqueue(&protocol.Envelope{}))
	assert.False(t, b.Enqueue(&protocol.Envelope{}))
}

func TestExpiry(t *testing.T) {
	s := newSession("s1")
	assert.False(t, s.Expired(time.Minute))
	assert.True(t, s.Expired(-time.Second))
	s.Touch()
	assert.False(t, s.Expired(time.Minute))
}
