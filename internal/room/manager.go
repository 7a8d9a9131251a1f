package room

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/config"
	"github.com/cardfree/card-server-go/internal/protocol"
)

// Notifier delivers a room event to one member. Delivery is best effort.
type Notifier func(username string, env *protocol.Envelope)

// Info is the room listing entry sent during server identification.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MemberCount int    `json:"memberCount"`
}

// Manager owns the fixed room directory.
type Manager struct {
	logger   *zap.Logger
	notifier Notifier
	rooms    map[string]*Room
	order    []string
}

// NewManager builds the room directory from configuration. When no rooms
// are configured a default main room is created.
func NewManager(cfgs []config.RoomConfig, notifier Notifier, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger,
		notifier: notifier,
		rooms:    make(map[string]*Room),
	}
	if len(cfgs) == 0 {
		cfgs = []config.RoomConfig{{ID: "main", Name: "Main Room"}}
	}
	for _, c := range cfgs {
		m.rooms[c.ID] = newRoom(c.ID, c.Name, c.Description)
		m.order = append(m.order, c.ID)
	}
	sort.Strings(m.order)
	return m
}

// GetRoom returns the room with the given id.
func (m *Manager) GetRoom(id string) (*Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms lists every room with its current member count.
func (m *Manager) Rooms() []Info {
	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		r := m.rooms[id]
		out = append(out, Info{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			MemberCount: r.MemberCount(),
		})
	}
	return out
}

// Join adds the user to the room and announces it to the other members.
func (m *Manager) Join(roomID, username string) error {
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.join(username); err != nil {
		return err
	}
	m.broadcast(r, protocol.RoomEventUserJoined, protocol.UserJoinedPayload{UserName: username})
	m.logger.Debug("user joined room",
		zap.String("room_id", roomID),
		zap.String("username", username),
	)
	return nil
}

// Leave removes the user from the room and announces it.
func (m *Manager) Leave(roomID, username string) error {
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.leave(username); err != nil {
		return err
	}
	m.broadcast(r, protocol.RoomEventUserLeft, protocol.UserLeftPayload{UserName: username})
	return nil
}

// Say broadcasts a chat message to the room. Only members may speak.
func (m *Manager) Say(roomID, username, message string) error {
	r, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !r.HasMember(username) {
		return ErrNotMember
	}
	m.broadcast(r, protocol.RoomEventRoomSay, protocol.RoomSayEventPayload{UserName: username, Message: message})
	return nil
}

// AnnounceGameCreated tells room members about a new game.
func (m *Manager) AnnounceGameCreated(roomID string, summary protocol.GameSummary) {
	if r, ok := m.rooms[roomID]; ok {
		m.broadcast(r, protocol.RoomEventGameCreated, protocol.GameCreatedPayload{Game: summary})
	}
}

// AnnounceGameClosed tells room members a game ended.
func (m *Manager) AnnounceGameClosed(roomID, gameID string) {
	if r, ok := m.rooms[roomID]; ok {
		m.broadcast(r, protocol.RoomEventGameClosed, protocol.GameClosedPayload{GameID: gameID})
	}
}

// RemoveEverywhere drops the user from every room, announcing each exit.
// Used when a session disconnects.
func (m *Manager) RemoveEverywhere(username string) {
	for _, r := range m.rooms {
		if r.leave(username) == nil {
			m.broadcast(r, protocol.RoomEventUserLeft, protocol.UserLeftPayload{UserName: username})
		}
	}
}

func (m *Manager) broadcast(r *Room, t protocol.RoomEventType, payload any) {
	if m.notifier == nil {
		return
	}
	env, err := protocol.NewRoomEvent(r.ID, t, payload)
	if err != nil {
		m.logger.Warn("failed to encode room event",
			zap.String("room_id", r.ID),
			zap.String("event_type", string(t)),
			zap.Error(err),
		)
		return
	}
	for _, member := range r.Members() {
		m.notifier(member, env)
	}
}
