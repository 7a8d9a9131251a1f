package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardfree/card-server-go/internal/auth"
	"github.com/cardfree/card-server-go/internal/config"
	"github.com/cardfree/card-server-go/internal/game"
	"github.com/cardfree/card-server-go/internal/mail"
	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/room"
	"github.com/cardfree/card-server-go/internal/session"
	"github.com/cardfree/card-server-go/internal/user"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*user.Record
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*user.Record)}
}

func (s *fakeUserStore) GetUser(_ context.Context, name string) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, rec *user.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Name]; ok {
		return user.ErrUserExists
	}
	cp := *rec
	s.users[rec.Name] = &cp
	return nil
}

func (s *fakeUserStore) ActivateUser(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return user.ErrUserNotFound
	}
	rec.Active = true
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, name, salt, proof string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return user.ErrUserNotFound
	}
	rec.Salt = salt
	rec.PasswordProof = proof
	return nil
}

func (s *fakeUserStore) SetAdmin(_ context.Context, name string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[name]
	if !ok {
		return user.ErrUserNotFound
	}
	rec.Admin = admin
	return nil
}

type fakeDeckStore struct {
	mu    sync.Mutex
	decks map[string][]string
}

func newFakeDeckStore() *fakeDeckStore {
	return &fakeDeckStore{decks: make(map[string][]string)}
}

func (s *fakeDeckStore) SaveDeck(_ context.Context, username, name string, cards []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[username+"/"+name] = append([]string(nil), cards...)
	return nil
}

func (s *fakeDeckStore) LoadDeck(_ context.Context, username, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards, ok := s.decks[username+"/"+name]
	if !ok {
		return nil, errDeckMissing
	}
	return cards, nil
}

func (s *fakeDeckStore) ListDecks(_ context.Context, username string) ([]string, error) {
	return nil, nil
}

var errDeckMissing = assert.AnError

type testEnv struct {
	server   *Server
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{}
	cfg.Server.Name = "test-server"
	cfg.Server.WorkerPoolSize = 16
	cfg.Server.SaturationPolicy = "reject"
	cfg.Game.PauseOnDisconnect = false

	sessions := session.NewManager(time.Minute, logger)
	users, err := user.NewManager(newFakeUserStore(), nil, user.Policy{Mode: "open"}, logger)
	require.NoError(t, err)

	notifier := func(username string, env *protocol.Envelope) {
		if sess, ok := sessions.SessionForUser(username); ok {
			sess.Enqueue(env)
		}
	}
	rooms := room.NewManager([]config.RoomConfig{{ID: "main", Name: "Main Room"}}, notifier, logger)

	sink := func(sessionID string, c *protocol.GameEventContainer) bool {
		sess, ok := sessions.GetSession(sessionID)
		if !ok {
			return false
		}
		return sess.Enqueue(&protocol.Envelope{Game: c})
	}
	games := game.NewManager(sink, nil, game.Limits{MinPlayers: 1, MaxPlayers: 8}, logger)
	t.Cleanup(games.CloseAll)

	srv := New(cfg, sessions, users, rooms, games, newFakeDeckStore(),
		auth.NewTokenStore(time.Hour), mail.NewClient(config.MailConfig{}, logger),
		nil, "test", logger)
	return &testEnv{server: srv, sessions: sessions}
}

func (e *testEnv) newSession() *session.Session {
	return e.sessions.CreateSession()
}

var nextCmdID uint64

func command(typ protocol.CommandType, roomID, gameID string, payload any) *protocol.CommandContainer {
	nextCmdID++
	cmd := &protocol.CommandContainer{ID: nextCmdID, Type: typ, RoomID: roomID, GameID: gameID}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		cmd.Payload = raw
	}
	return cmd
}

func respCode(t *testing.T, env *protocol.Envelope) protocol.ResponseCode {
	t.Helper()
	require.NotNil(t, env)
	require.NotNil(t, env.Response, "route must produce a response")
	return env.Response.Code
}

func loginGuest(t *testing.T, e *testEnv, sess *session.Session, name string) {
	t.Helper()
	env := e.server.route(context.Background(), sess,
		command(protocol.CmdLogin, "", "", protocol.LoginPayload{UserName: name}))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	require.True(t, sess.LoggedIn())
}

func TestRouteRequiresLoginForRoomAndGameCommands(t *testing.T) {
	e := newTestServer(t)
	sess := e.newSession()
	ctx := context.Background()

	for _, cmd := range []*protocol.CommandContainer{
		command(protocol.CmdJoinRoom, "main", "", nil),
		command(protocol.CmdDrawCards, "", "g", protocol.DrawCardsPayload{Count: 1}),
		command(protocol.CmdBanUser, "", "", protocol.BanUserPayload{UserName: "x"}),
	} {
		env := e.server.route(ctx, sess, cmd)
		assert.Equal(t, protocol.RespInvalidSessionState, respCode(t, env))
		assert.Equal(t, cmd.ID, env.Response.CommandID)
	}
}

func TestRoutePing(t *testing.T) {
	e := newTestServer(t)
	sess := e.newSession()
	env := e.server.route(context.Background(), sess, command(protocol.CmdPing, "", "", nil))
	assert.Equal(t, protocol.RespOk, respCode(t, env))
}

func TestRouteRegisteredLoginFlow(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	regSess := e.newSession()
	env := e.server.route(ctx, regSess, command(protocol.CmdRegister, "", "", protocol.RegisterPayload{
		UserName: "alice", Password: "secret99",
	}))
	require.Equal(t, protocol.RespOk, respCode(t, env))

	sess := e.newSession()
	env = e.server.route(ctx, sess, command(protocol.CmdRequestPasswordSalt, "", "",
		protocol.RequestPasswordSaltPayload{UserName: "alice"}))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	var saltPayload protocol.PasswordSaltPayload
	require.NoError(t, json.Unmarshal(env.Response.Data, &saltPayload))
	require.NotEmpty(t, saltPayload.Salt)

	env = e.server.route(ctx, sess, command(protocol.CmdLogin, "", "", protocol.LoginPayload{
		UserName: "alice", Proof: auth.ComputeProof("secret99", saltPayload.Salt),
	}))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	var loginPayload protocol.LoginResultPayload
	require.NoError(t, json.Unmarshal(env.Response.Data, &loginPayload))
	assert.Equal(t, "alice", loginPayload.UserName)
	assert.False(t, loginPayload.Guest)
	assert.True(t, sess.LoggedIn())
}

func TestRouteWrongProofReturnsToConnecting(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	reg := e.newSession()
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, reg,
		command(protocol.CmdRegister, "", "", protocol.RegisterPayload{UserName: "alice", Password: "secret99"}))))

	sess := e.newSession()
	env := e.server.route(ctx, sess, command(protocol.CmdLogin, "", "", protocol.LoginPayload{
		UserName: "alice", Proof: "deadbeef",
	}))
	assert.Equal(t, protocol.RespLoginFailed, respCode(t, env))
	assert.Equal(t, session.StateConnecting, sess.State())
}

func TestRouteRoomAndGameLifecycle(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	alice := e.newSession()
	loginGuest(t, e, alice, "alice")
	bob := e.newSession()
	loginGuest(t, e, bob, "bob")

	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, alice,
		command(protocol.CmdJoinRoom, "main", "", nil))))
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, bob,
		command(protocol.CmdJoinRoom, "main", "", nil))))

	env := e.server.route(ctx, alice, command(protocol.CmdCreateGame, "main", "",
		protocol.CreateGamePayload{MaxPlayers: 2}))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Response.Data, &created))
	gameID := created["gameId"]
	require.NotEmpty(t, gameID)

	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, alice,
		command(protocol.CmdJoinGame, "", gameID, protocol.JoinGamePayload{
			Deck: []string{"Card A", "Card B", "Card C"},
		}))))
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, bob,
		command(protocol.CmdJoinGame, "", gameID, protocol.JoinGamePayload{}))))

	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, alice,
		command(protocol.CmdDrawCards, "", gameID, protocol.DrawCardsPayload{Count: 2}))))

	env = e.server.route(ctx, alice, command(protocol.CmdListGames, "main", "", nil))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	var listing protocol.ListGamesPayload
	require.NoError(t, json.Unmarshal(env.Response.Data, &listing))
	require.Len(t, listing.Games, 1)
	assert.Equal(t, 2, listing.Games[0].PlayerCount)

	// Both players leave; the game is destroyed with the last one out.
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, bob,
		command(protocol.CmdLeaveGame, "", gameID, nil))))
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, alice,
		command(protocol.CmdLeaveGame, "", gameID, nil))))

	env = e.server.route(ctx, alice, command(protocol.CmdListGames, "main", "", nil))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	listing = protocol.ListGamesPayload{}
	require.NoError(t, json.Unmarshal(env.Response.Data, &listing))
	assert.Empty(t, listing.Games)
}

func TestRouteJoinGameRequiresRoomMembership(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	alice := e.newSession()
	loginGuest(t, e, alice, "alice")
	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, alice,
		command(protocol.CmdJoinRoom, "main", "", nil))))

	env := e.server.route(ctx, alice, command(protocol.CmdCreateGame, "main", "",
		protocol.CreateGamePayload{MaxPlayers: 2}))
	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Response.Data, &created))

	outsider := e.newSession()
	loginGuest(t, e, outsider, "mallory")
	env = e.server.route(ctx, outsider, command(protocol.CmdJoinGame, "", created["gameId"],
		protocol.JoinGamePayload{}))
	assert.Equal(t, protocol.RespNotMember, respCode(t, env))
}

func TestRouteAdminGate(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	sess := e.newSession()
	loginGuest(t, e, sess, "alice")
	env := e.server.route(ctx, sess, command(protocol.CmdBanUser, "", "",
		protocol.BanUserPayload{UserName: "bob"}))
	assert.Equal(t, protocol.RespPermissionDenied, respCode(t, env))
}

func TestRouteUnknownCommand(t *testing.T) {
	e := newTestServer(t)
	sess := e.newSession()
	env := e.server.route(context.Background(), sess, command("Nonsense", "", "", nil))
	assert.Equal(t, protocol.RespInvalidCommand, respCode(t, env))
}

func TestRouteSaveAndLoadDeck(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	sess := e.newSession()
	loginGuest(t, e, sess, "alice")

	require.Equal(t, protocol.RespOk, respCode(t, e.server.route(ctx, sess,
		command(protocol.CmdSaveDeck, "", "", protocol.SaveDeckPayload{
			Name: "mono-red", Cards: []string{"Bolt", "Bolt", "Mountain"},
		}))))

	env := e.server.route(ctx, sess, command(protocol.CmdLoadDeck, "", "",
		protocol.LoadDeckPayload{Name: "mono-red"}))
	require.Equal(t, protocol.RespOk, respCode(t, env))
	var deck protocol.DeckPayload
	require.NoError(t, json.Unmarshal(env.Response.Data, &deck))
	assert.Equal(t, []string{"Bolt", "Bolt", "Mountain"}, deck.Cards)
}

func TestRouteDuplicateGuestLoginReplacedSession(t *testing.T) {
	e := newTestServer(t)
	ctx := context.Background()

	first := e.newSession()
	loginGuest(t, e, first, "alice")

	second := e.newSession()
	env := e.server.route(ctx, second, command(protocol.CmdLogin, "", "",
		protocol.LoginPayload{UserName: "alice"}))
	require.Equal(t, protocol.RespOk, respCode(t, env))

	got, ok := e.sessions.SessionForUser("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
}
