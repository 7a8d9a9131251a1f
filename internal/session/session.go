package session

import (
	"errors"
	"sync"
	"time"

	"github.com/cardfree/card-server-go/internal/protocol"
)

// State is the position of a session in the login handshake.
type State int

const (
	StateConnecting State = iota
	StateGettingPasswordSalt
	StateLoggingIn
	StateRegistering
	StateActivating
	StateLoggedIn
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateGettingPasswordSalt:
		return "getting_password_salt"
	case StateLoggingIn:
		return "logging_in"
	case StateRegistering:
		return "registering"
	case StateActivating:
		return "activating"
	case StateLoggedIn:
		return "logged_in"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ErrInvalidState rejects a command that is not legal in the session's
// current state. The state is left unchanged.
var ErrInvalidState = errors.New("session: command not valid in current state")

// sendQueueSize bounds the per-session outbox. A slow consumer overflows the
// queue and is marked for resynchronization rather than blocking the sender.
const sendQueueSize = 256

// Session is one client connection's authentication state and outbox. One
// worker goroutine reads commands for the session; a writer goroutine drains
// the outbox. Everything else may touch it concurrently.
type Session struct {
	ID string

	mu         sync.Mutex
	state      State
	username   string
	admin      bool
	lastActive time.Time

	outbox chan *protocol.Envelope
	closed bool
}

func newSession(id string) *Session {
	return &Session{
		ID:         id,
		state:      StateConnecting,
		lastActive: time.Now(),
		outbox:     make(chan *protocol.Envelope, sendQueueSize),
	}
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the logged-in name, empty before login completes.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// IsAdmin reports whether the logged-in user holds moderator rights.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

// transition moves to the target state when the current state is one of the
// allowed sources. A disconnected session accepts nothing.
func (s *Session) transition(to State, from ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = to
			return nil
		}
	}
	return ErrInvalidState
}

// BeginSaltRequest enters the salt exchange. Repeating the request is
// harmless.
func (s *Session) BeginSaltRequest() error {
	return s.transition(StateGettingPasswordSalt, StateConnecting, StateGettingPasswordSalt)
}

// BeginLogin starts credential verification. Logging in without a prior
// salt request is allowed for guest logins.
func (s *Session) BeginLogin() error {
	return s.transition(StateLoggingIn, StateConnecting, StateGettingPasswordSalt)
}

// LoginSucceeded completes the handshake and binds the username.
func (s *Session) LoginSucceeded(username string, admin bool) error {
	if err := s.transition(StateLoggedIn, StateLoggingIn, StateActivating); err != nil {
		return err
	}
	s.mu.Lock()
	s.username = username
	s.admin = admin
	s.mu.Unlock()
	return nil
}

// LoginFailed returns to the pre-handshake state so the client may retry.
func (s *Session) LoginFailed() error {
	return s.transition(StateConnecting, StateLoggingIn)
}

// BeginRegistration starts account creation.
func (s *Session) BeginRegistration() error {
	return s.transition(StateRegistering, StateConnecting, StateGettingPasswordSalt)
}

// RegistrationDone returns to connecting; the account still needs
// activation before login.
func (s *Session) RegistrationDone() error {
	return s.transition(StateConnecting, StateRegistering)
}

// BeginActivation starts token redemption for a freshly registered account.
func (s *Session) BeginActivation() error {
	return s.transition(StateActivating, StateConnecting, StateGettingPasswordSalt)
}

// ActivationDone returns to connecting; the client logs in normally with
// its now-active account.
func (s *Session) ActivationDone() error {
	return s.transition(StateConnecting, StateActivating)
}

// ActivationFailed returns to connecting.
func (s *Session) ActivationFailed() error {
	return s.transition(StateConnecting, StateActivating)
}

// LoggedIn reports whether the handshake has completed.
func (s *Session) LoggedIn() bool {
	return s.State() == StateLoggedIn
}

// MarkDisconnected is terminal; every state may reach it.
func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()
}

// Touch records activity for lease accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the session has been idle longer than the lease.
func (s *Session) Expired(lease time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive) > lease
}

// Enqueue places an envelope on the outbox without blocking. It returns
// false when the queue is full or the session is closed; the caller marks
// the recipient for resynchronization.
func (s *Session) Enqueue(env *protocol.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbox <- env:
		return true
	default:
		return false
	}
}

// Outbox is drained by the session's writer goroutine. It is closed when the
// session closes.
func (s *Session) Outbox() <-chan *protocol.Envelope {
	return s.outbox
}

// Close marks the session disconnected and closes the outbox. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.state = StateDisconnected
	close(s.outbox)
}
