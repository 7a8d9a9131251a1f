package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/replay"
)

// ErrInvalidConfig rejects a game whose configuration violates the
// configured player-count bounds.
var ErrInvalidConfig = errors.New("game: invalid game configuration")

// Limits bounds game creation.
type Limits struct {
	MinPlayers  int
	MaxPlayers  int
	IdleTimeout time.Duration
}

// Manager is the directory of live games. Each game runs its own command
// loop; the manager only creates, looks up and destroys them.
type Manager struct {
	logger     *zap.Logger
	sink       EventSink
	replaySink replay.Sink
	limits     Limits

	mu    sync.RWMutex
	games map[string]*Game
}

// NewManager creates a game manager. replaySink may be nil to disable
// durable replay persistence.
func NewManager(sink EventSink, replaySink replay.Sink, limits Limits, logger *zap.Logger) *Manager {
	if limits.MinPlayers < 1 {
		limits.MinPlayers = 1
	}
	if limits.MaxPlayers < limits.MinPlayers {
		limits.MaxPlayers = limits.MinPlayers
	}
	return &Manager{
		logger:     logger,
		sink:       sink,
		replaySink: replaySink,
		limits:     limits,
		games:      make(map[string]*Game),
	}
}

// CreateGame validates the configuration, creates the game and starts its
// command loop. The creator still joins through JoinGame like everyone else.
func (m *Manager) CreateGame(cfg Config) (*Game, error) {
	if cfg.MaxPlayers < m.limits.MinPlayers || cfg.MaxPlayers > m.limits.MaxPlayers {
		return nil, fmt.Errorf("%w: max players %d outside [%d, %d]",
			ErrInvalidConfig, cfg.MaxPlayers, m.limits.MinPlayers, m.limits.MaxPlayers)
	}

	id := uuid.NewString()
	recorder := replay.NewRecorder(id, m.replaySink, m.logger)
	g, err := New(id, cfg, recorder, m.sink, m.logger)
	if err != nil {
		recorder.Close()
		return nil, err
	}

	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()

	m.logger.Info("game created",
		zap.String("game_id", g.ID),
		zap.String("room_id", cfg.RoomID),
		zap.String("creator", cfg.Creator),
		zap.Int("max_players", cfg.MaxPlayers),
		zap.Int64("seed", g.Seed()),
	)
	return g, nil
}

// GetGame returns the game with the given id.
func (m *Manager) GetGame(id string) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	return g, ok
}

// GamesInRoom returns the summaries of all live games in a room. The slice
// is a fresh snapshot on every call.
func (m *Manager) GamesInRoom(roomID string) []protocol.GameSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]protocol.GameSummary, 0)
	for _, g := range m.games {
		if g.Config().RoomID == roomID && !g.Dead() {
			summaries = append(summaries, g.Summary())
		}
	}
	return summaries
}

// ActiveGameCount returns the number of live games.
func (m *Manager) ActiveGameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// GamesWithParticipant returns the games the named user is part of.
func (m *Manager) GamesWithParticipant(name string) []*Game {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Game
	for _, g := range m.games {
		if g.HasParticipant(name) {
			out = append(out, g)
		}
	}
	return out
}

// DestroyIfEmpty closes and forgets the game when no participants remain.
// Closing flushes any pending replay writes.
func (m *Manager) DestroyIfEmpty(id string) bool {
	m.mu.Lock()
	g, ok := m.games[id]
	if !ok || !g.Empty() {
		m.mu.Unlock()
		return false
	}
	delete(m.games, id)
	m.mu.Unlock()

	g.Close("all participants left")
	m.logger.Info("game destroyed", zap.String("game_id", id))
	return true
}

// CloseAll ends every game, flushing replay logs. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	games := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.games = make(map[string]*Game)
	m.mu.Unlock()

	for _, g := range games {
		g.Close("server shutting down")
	}
}

// SweepIdle ends games with no recent activity. Run as a goroutine; ticks
// until ctx is done.
func (m *Manager) SweepIdle(ctx context.Context) {
	if m.limits.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(m.limits.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.limits.IdleTimeout)
			m.mu.Lock()
			var idle []*Game
			for id, g := range m.games {
				if g.IdleSince().Before(cutoff) || g.Dead() {
					idle = append(idle, g)
					delete(m.games, id)
				}
			}
			m.mu.Unlock()

			for _, g := range idle {
				m.logger.Info("closing idle game", zap.String("game_id", g.ID))
				g.Close("idle timeout")
			}
		}
	}
}
