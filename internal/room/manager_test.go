package room

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardfree/card-server-go/internal/config"
	"github.com/cardfree/card-server-go/internal/protocol"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent map[string][]*protocol.RoomEvent
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{sent: make(map[string][]*protocol.RoomEvent)}
}

func (n *captureNotifier) notify(username string, env *protocol.Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[username] = append(n.sent[username], env.Room)
}

func (n *captureNotifier) eventsFor(username string) []*protocol.RoomEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*protocol.RoomEvent(nil), n.sent[username]...)
}

func newTestManager(t *testing.T) (*Manager, *captureNotifier) {
	t.Helper()
	n := newCaptureNotifier()
	m := NewManager([]config.RoomConfig{
		{ID: "main", Name: "Main Room"},
		{ID: "tournament", Name: "Tournament Hall"},
	}, n.notify, zaptest.NewLogger(t))
	return m, n
}

func TestJoinLeave(t *testing.T) {
	m, n := newTestManager(t)

	require.NoError(t, m.Join("main", "alice"))
	assert.ErrorIs(t, m.Join("main", "alice"), ErrAlreadyMember)
	assert.ErrorIs(t, m.Join("nowhere", "alice"), ErrRoomNotFound)

	require.NoError(t, m.Join("main", "bob"))

	// Bob's join was announced to alice.
	events := n.eventsFor("alice")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, protocol.RoomEventUserJoined, last.Type)
	assert.Equal(t, "main", last.RoomID)

	require.NoError(t, m.Leave("main", "bob"))
	assert.ErrorIs(t, m.Leave("main", "bob"), ErrNotMember)

	r, ok := m.GetRoom("main")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, r.Members())
}

func TestSayRequiresMembership(t *testing.T) {
	m, n := newTestManager(t)
	require.NoError(t, m.Join("main", "alice"))
	require.NoError(t, m.Join("main", "bob"))

	assert.ErrorIs(t, m.Say("main", "carol", "hi"), ErrNotMember)
	require.NoError(t, m.Say("main", "alice", "hello"))

	var found bool
	for _, ev := range n.eventsFor("bob") {
		if ev.Type != protocol.RoomEventRoomSay {
			continue
		}
		var p protocol.RoomSayEventPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &p))
		assert.Equal(t, "alice", p.UserName)
		assert.Equal(t, "hello", p.Message)
		found = true
	}
	assert.True(t, found)
}

func TestMembershipIsPerRoom(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Join("main", "alice"))

	assert.ErrorIs(t, m.Say("tournament", "alice", "hi"), ErrNotMember)
	require.NoError(t, m.Join("tournament", "alice"))
	require.NoError(t, m.Say("tournament", "alice", "hi"))
}

func TestRemoveEverywhere(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Join("main", "alice"))
	require.NoError(t, m.Join("tournament", "alice"))

	m.RemoveEverywhere("alice")

	for _, id := range []string{"main", "tournament"} {
		r, _ := m.GetRoom(id)
		assert.False(t, r.HasMember("alice"))
	}
}

func TestGameAnnouncements(t *testing.T) {
	m, n := newTestManager(t)
	require.NoError(t, m.Join("main", "alice"))

	m.AnnounceGameCreated("main", protocol.GameSummary{GameID: "g1", MaxPlayers: 2})
	m.AnnounceGameClosed("main", "g1")

	events := n.eventsFor("alice")
	var sawCreated, sawClosed bool
	for _, ev := range events {
		switch ev.Type {
		case protocol.RoomEventGameCreated:
			sawCreated = true
		case protocol.RoomEventGameClosed:
			sawClosed = true
		}
	}
	assert.True(t, sawCreated)
	assert.True(t, sawClosed)
}

func TestRoomsListing(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Join("main", "alice"))

	infos := m.Rooms()
	require.Len(t, infos, 2)
	assert.Equal(t, "main", infos[0].ID)
	assert.Equal(t, 1, infos[0].MemberCount)
	assert.Equal(t, "tournament", infos[1].ID)

	defaulted := NewManager(nil, nil, zaptest.NewLogger(t))
	infos = defaulted.Rooms()
	require.Len(t, infos, 1)
	assert.Equal(t, "main", infos[0].ID)
}
