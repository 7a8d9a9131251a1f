package room

import (
	"errors"
	"sort"
	"sync"
)

// Membership errors.
var (
	ErrRoomNotFound  = errors.New("room: not found")
	ErrAlreadyMember = errors.New("room: already a member")
	ErrNotMember     = errors.New("room: not a member")
)

// Room is a chat and game lobby. Rooms are fixed at startup and never
// deleted while the server runs.
type Room struct {
	ID          string
	Name        string
	Description string

	mu      sync.RWMutex
	members map[string]bool
}

func newRoom(id, name, description string) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Description: description,
		members:     make(map[string]bool),
	}
}

func (r *Room) join(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[username] {
		return ErrAlreadyMember
	}
	r.members[username] = true
	return nil
}

func (r *Room) leave(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[username] {
		return ErrNotMember
	}
	delete(r.members, username)
	return nil
}

// HasMember reports whether the user has joined the room.
func (r *Room) HasMember(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[username]
}

// Members returns the member usernames, sorted.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.members))
	for name := range r.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MemberCount returns the number of members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
