package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
)

// Manager tracks every live session and enforces one session per logged-in
// user.
type Manager struct {
	logger *zap.Logger
	lease  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]string
}

// NewManager creates a session manager. Sessions idle longer than the lease
// period are reaped by CleanupExpiredSessions.
func NewManager(lease time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		lease:    lease,
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
	}
}

// CreateSession registers a new connecting session.
func (m *Manager) CreateSession() *Session {
	s := newSession(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session created", zap.String("session_id", s.ID))
	return s
}

// GetSession returns the session with the given id.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// SessionForUser returns the session the named user is logged in on.
func (m *Manager) SessionForUser(username string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUser[username]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// BindUser associates a logged-in username with its session. When the user
// is already logged in elsewhere, the previous session is returned so the
// caller can close it; logging in again replaces the old connection.
func (m *Manager) BindUser(username, sessionID string) (previous *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldID, ok := m.byUser[username]; ok && oldID != sessionID {
		previous = m.sessions[oldID]
	}
	m.byUser[username] = sessionID
	return previous
}

// RemoveSession forgets and closes a session.
func (m *Manager) RemoveSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if name := s.Username(); name != "" && m.byUser[name] == id {
			delete(m.byUser, name)
		}
	}
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Debug("session removed", zap.String("session_id", id))
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// OnlineUsers lists logged-in usernames, sorted.
func (m *Manager) OnlineUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]string, 0, len(m.byUser))
	for name := range m.byUser {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// CleanupExpiredSessions reaps idle sessions until ctx is done. Run as a
// goroutine.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	if m.lease <= 0 {
		return
	}
	ticker := time.NewTicker(m.lease / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			var expired []*Session
			for id, s := range m.sessions {
				if s.Expired(m.lease) {
					expired = append(expired, s)
					delete(m.sessions, id)
					if name := s.Username(); name != "" && m.byUser[name] == id {
						delete(m.byUser, name)
					}
				}
			}
			m.mu.Unlock()

			for _, s := range expired {
				m.logger.Info("session expired",
					zap.String("session_id", s.ID),
					zap.String("username", s.Username()),
				)
				s.Close()
			}
		}
	}
}

// Broadcast enqueues an envelope on every live session.
func (m *Manager) Broadcast(env *protocol.Envelope) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Enqueue(env)
	}
}

// CloseAll ends every session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.byUser = make(map[string]string)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
