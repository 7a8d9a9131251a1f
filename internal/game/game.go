package game

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/replay"
	"github.com/cardfree/card-server-go/internal/rng"
)

// startingHandSize is the number of cards dealt by the first draw after a
// deck is presented; each mulligan draws one fewer.
const startingHandSize = 7

// EventSink delivers a filtered event container to one session's worker.
// It must not block; it returns false when the delivery was dropped so the
// engine can mark the recipient for resynchronization.
type EventSink func(sessionID string, container *protocol.GameEventContainer) bool

// Config is the immutable configuration of one game.
type Config struct {
	RoomID            string
	Description       string
	Password          string
	MaxPlayers        int
	SpectatorsAllowed bool
	Creator           string
	// Seed fixes the RNG stream when non-zero; zero seeds from a secure source.
	Seed              int64
	PauseOnDisconnect bool
}

// Result is the outcome of one submitted command: a response code and an
// optional data payload for the issuer.
type Result struct {
	Code protocol.ResponseCode
	Data any
}

// Game owns the authoritative state of one game instance: participants,
// zones, cards, counters and arrows. All mutation happens on the game's
// single command loop, so commands for one game are totally ordered while
// different games proceed in parallel.
type Game struct {
	ID        string
	cfg       Config
	logger    *zap.Logger
	rng       *rng.Stream
	recorder  *replay.Recorder
	sink      EventSink
	createdAt time.Time

	requests chan *request
	done     chan struct{}
	stopOnce sync.Once

	// Loop-owned state. Never touched outside the run loop.
	participants map[string]*Participant
	order        []string
	zones        map[zoneKey]*Zone
	cards        map[string]*Card
	arrows       map[string]*Arrow

	// Cheap cross-goroutine snapshot for listings and idle sweeps.
	statMu       sync.Mutex
	playerCount  int
	spectators   int
	members      map[string]bool
	lastActivity time.Time
	dead         bool
}

type request struct {
	kind    requestKind
	actor   string
	cmdType protocol.CommandType
	payload json.RawMessage

	// join fields
	sessionID string
	password  string
	spectator bool
	deck      []string

	// close field
	reason string

	reply chan Result
}

type requestKind int

const (
	reqCommand requestKind = iota
	reqJoin
	reqDisconnect
	reqClose
)

// New creates a game with the given id and starts its command loop. An
// empty id gets a generated one.
func New(id string, cfg Config, recorder *replay.Recorder, sink EventSink, logger *zap.Logger) (*Game, error) {
	var stream *rng.Stream
	if cfg.Seed != 0 {
		stream = rng.NewSeededStream(cfg.Seed)
	} else {
		var err error
		stream, err = rng.NewStream()
		if err != nil {
			return nil, fmt.Errorf("game: seed rng: %w", err)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	g := &Game{
		ID:           id,
		cfg:          cfg,
		logger:       logger,
		rng:          stream,
		recorder:     recorder,
		sink:         sink,
		createdAt:    time.Now(),
		requests:     make(chan *request, 64),
		done:         make(chan struct{}),
		participants: make(map[string]*Participant),
		zones:        make(map[zoneKey]*Zone),
		cards:        make(map[string]*Card),
		arrows:       make(map[string]*Arrow),
		members:      make(map[string]bool),
		lastActivity: time.Now(),
	}

	for _, kind := range sharedZoneKinds {
		key := zoneKey{Kind: kind}
		g.zones[key] = newZone("", kind)
	}

	go g.run()
	return g, nil
}

// Config returns the game's configuration.
func (g *Game) Config() Config {
	return g.cfg
}

// Seed returns the RNG seed, fixed or generated.
func (g *Game) Seed() int64 {
	return g.rng.Seed()
}

// Recorder exposes the game's replay log for catch-up and review.
func (g *Game) Recorder() *replay.Recorder {
	return g.recorder
}

// Summary returns the room-listing view of this game.
func (g *Game) Summary() protocol.GameSummary {
	g.statMu.Lock()
	defer g.statMu.Unlock()
	return protocol.GameSummary{
		GameID:            g.ID,
		Description:       g.cfg.Description,
		HasPassword:       g.cfg.Password != "",
		PlayerCount:       g.playerCount,
		MaxPlayers:        g.cfg.MaxPlayers,
		SpectatorsAllowed: g.cfg.SpectatorsAllowed,
		SpectatorCount:    g.spectators,
		Started:           g.playerCount > 0,
	}
}

// IdleSince returns the time of the last processed command.
func (g *Game) IdleSince() time.Time {
	g.statMu.Lock()
	defer g.statMu.Unlock()
	return g.lastActivity
}

// Empty reports whether no participants remain.
func (g *Game) Empty() bool {
	g.statMu.Lock()
	defer g.statMu.Unlock()
	return g.playerCount == 0 && g.spectators == 0
}

// Submit routes one game command through the command loop and waits for its
// result. Commands for the same game are applied strictly in arrival order.
func (g *Game) Submit(ctx context.Context, actor string, cmdType protocol.CommandType, payload json.RawMessage) Result {
	return g.send(ctx, &request{
		kind:    reqCommand,
		actor:   actor,
		cmdType: cmdType,
		payload: payload,
		reply:   make(chan Result, 1),
	})
}

// Join adds a participant, validating password and capacity atomically with
// the rest of the game's command stream. A player's deck, when present, is
// placed into their library in the given order.
func (g *Game) Join(ctx context.Context, name, sessionID, password string, spectator bool, deck []string) Result {
	return g.send(ctx, &request{
		kind:      reqJoin,
		actor:     name,
		sessionID: sessionID,
		password:  password,
		spectator: spectator,
		deck:      deck,
		reply:     make(chan Result, 1),
	})
}

// Disconnect marks the named participant as disconnected. Pending responses
// for that session are dropped by its worker; the game itself continues (or
// pauses, per configuration).
func (g *Game) Disconnect(ctx context.Context, name string) Result {
	return g.send(ctx, &request{
		kind:  reqDisconnect,
		actor: name,
		reply: make(chan Result, 1),
	})
}

func (g *Game) send(ctx context.Context, req *request) Result {
	select {
	case g.requests <- req:
	case <-g.done:
		return Result{Code: protocol.RespGameNotFound}
	case <-ctx.Done():
		return Result{Code: protocol.RespServerBusy}
	}

	select {
	case res := <-req.reply:
		return res
	case <-g.done:
		return Result{Code: protocol.RespGameNotFound}
	case <-ctx.Done():
		return Result{Code: protocol.RespServerBusy}
	}
}

// Close stops the command loop, broadcasts a closed event and flushes the
// replay log. Safe to call more than once.
func (g *Game) Close(reason string) {
	g.stopOnce.Do(func() {
		req := &request{kind: reqClose, reason: reason, reply: make(chan Result, 1)}
		select {
		case g.requests <- req:
			<-req.reply
		case <-g.done:
		}
	})
}

func (g *Game) run() {
	defer func() {
		if g.recorder != nil {
			g.recorder.Close()
		}
	}()

	for {
		select {
		case req := <-g.requests:
			if req.kind == reqClose {
				g.broadcast([]eventRecord{{Type: EventGameClosed, Payload: GameClosedEvent{Reason: req.reason}}})
				g.setDead()
				close(g.done)
				req.reply <- Result{Code: protocol.RespOk}
				return
			}
			g.process(req)
		case <-g.done:
			return
		}
	}
}

// process handles one request with panic isolation: an unrecoverable
// invariant violation terminates this game only, never the server, and the
// full state is dumped for postmortem.
func (g *Game) process(req *request) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("game loop panic, terminating game",
				zap.String("game_id", g.ID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
				zap.Any("state_dump", g.stateDump()),
			)
			req.reply <- Result{Code: protocol.RespInternalError}
			g.setDead()
			close(g.done)
		}
	}()

	var res Result
	switch req.kind {
	case reqJoin:
		res = g.handleJoin(req)
	case reqDisconnect:
		res = g.handleDisconnect(req.actor)
	default:
		res = g.handleCommand(req.actor, req.cmdType, req.payload)
	}

	g.statMu.Lock()
	g.lastActivity = time.Now()
	g.statMu.Unlock()

	req.reply <- res
}

func (g *Game) setDead() {
	g.statMu.Lock()
	g.dead = true
	g.statMu.Unlock()
}

// Dead reports whether the game loop has terminated.
func (g *Game) Dead() bool {
	g.statMu.Lock()
	defer g.statMu.Unlock()
	return g.dead
}

func (g *Game) handleJoin(req *request) Result {
	if g.cfg.Password != "" && req.password != g.cfg.Password {
		return Result{Code: protocol.RespWrongPassword}
	}

	// A disconnected participant rejoining binds their new session and
	// resumes in place; their zones and cards were kept.
	if existing, exists := g.participants[req.actor]; exists {
		if !existing.Disconnected {
			return Result{Code: protocol.RespAlreadyMember}
		}
		existing.SessionID = req.sessionID
		existing.Disconnected = false
		existing.NeedsResync = true
		g.broadcast([]eventRecord{
			{Type: EventJoin, PlayerID: existing.Name, Payload: JoinEvent{Name: existing.Name, Role: existing.Role}},
		})
		return Result{Code: protocol.RespOk, Data: map[string]string{"gameId": g.ID}}
	}

	role := RolePlayer
	if req.spectator {
		if !g.cfg.SpectatorsAllowed {
			return Result{Code: protocol.RespPermissionDenied}
		}
		role = RoleSpectator
	} else if g.countPlayers() >= g.cfg.MaxPlayers {
		return Result{Code: protocol.RespGameFull}
	}

	p := &Participant{Name: req.actor, Role: role, SessionID: req.sessionID}
	g.participants[p.Name] = p
	g.order = append(g.order, p.Name)

	if role == RolePlayer {
		for _, kind := range playerZoneKinds {
			key := zoneKey{Owner: p.Name, Kind: kind}
			g.zones[key] = newZone(p.Name, kind)
		}
		library := g.zones[zoneKey{Owner: p.Name, Kind: ZoneLibrary}]
		for _, name := range req.deck {
			card := newCard(uuid.NewString(), name, p.Name, false)
			g.cards[card.ID] = card
			library.insertAt(card, len(library.Cards))
		}
	}

	g.refreshStats()
	g.broadcast([]eventRecord{
		{Type: EventJoin, PlayerID: p.Name, Payload: JoinEvent{Name: p.Name, Role: role}},
	})
	return Result{Code: protocol.RespOk, Data: map[string]string{"gameId": g.ID}}
}

func (g *Game) handleDisconnect(name string) Result {
	p, ok := g.participants[name]
	if !ok {
		return Result{Code: protocol.RespGameNotFound}
	}
	p.Disconnected = true
	p.NeedsResync = true
	g.logger.Info("participant disconnected from game",
		zap.String("game_id", g.ID),
		zap.String("participant", name),
		zap.Bool("paused", g.cfg.PauseOnDisconnect),
	)
	return Result{Code: protocol.RespOk}
}

func (g *Game) hasDisconnectedPlayer() bool {
	for _, p := range g.participants {
		if p.Role == RolePlayer && p.Disconnected {
			return true
		}
	}
	return false
}

func (g *Game) countPlayers() int {
	n := 0
	for _, p := range g.participants {
		if p.Role == RolePlayer {
			n++
		}
	}
	return n
}

func (g *Game) refreshStats() {
	players, specs := 0, 0
	members := make(map[string]bool, len(g.participants))
	for _, p := range g.participants {
		members[p.Name] = true
		if p.Role == RolePlayer {
			players++
		} else {
			specs++
		}
	}
	g.statMu.Lock()
	g.playerCount = players
	g.spectators = specs
	g.members = members
	g.statMu.Unlock()
}

// HasParticipant reports whether name is currently part of the game.
func (g *Game) HasParticipant(name string) bool {
	g.statMu.Lock()
	defer g.statMu.Unlock()
	return g.members[name]
}

// broadcast appends each canonical event to the replay log and delivers the
// per-recipient filtered projections. State is already mutated by the time
// this runs; a delivery failure marks the recipient for resync and never
// rolls anything back.
func (g *Game) broadcast(records []eventRecord) {
	if g.recorder == nil {
		g.deliver(records, make([]uint64, len(records)))
		return
	}

	// An event the recorder refused is never delivered: recipients only
	// ever observe sequence numbers present in the replay log.
	kept := make([]eventRecord, 0, len(records))
	seqs := make([]uint64, 0, len(records))
	for _, rec := range records {
		ev, err := g.recorder.Append(rec.Type, rec.PlayerID, rec.Payload)
		if err != nil {
			g.logger.Warn("failed to record replay event",
				zap.String("game_id", g.ID),
				zap.String("event_type", rec.Type),
				zap.Error(err),
			)
			continue
		}
		kept = append(kept, rec)
		seqs = append(seqs, ev.Seq)
	}
	g.deliver(kept, seqs)
}

func (g *Game) deliver(records []eventRecord, seqs []uint64) {
	if g.sink == nil {
		return
	}
	for _, p := range g.participants {
		if p.Disconnected {
			continue
		}
		events := make([]protocol.GameEvent, 0, len(records))
		for i, rec := range records {
			filtered := filterPayload(rec, p.Name)
			raw, err := json.Marshal(filtered)
			if err != nil {
				g.logger.Warn("failed to encode filtered event",
					zap.String("game_id", g.ID),
					zap.String("event_type", rec.Type),
					zap.Error(err),
				)
				continue
			}
			events = append(events, protocol.GameEvent{
				Seq:      seqs[i],
				Type:     rec.Type,
				PlayerID: rec.PlayerID,
				Payload:  raw,
			})
		}
		if len(events) == 0 {
			continue
		}
		container := &protocol.GameEventContainer{GameID: g.ID, Events: events}
		if !g.sink(p.SessionID, container) {
			p.NeedsResync = true
			g.logger.Warn("dropped game event delivery",
				zap.String("game_id", g.ID),
				zap.String("participant", p.Name),
			)
		}
	}
}

// stateDump captures the full game state for postmortem logging.
func (g *Game) stateDump() map[string]any {
	zones := make(map[string][]string)
	for key, zone := range g.zones {
		zones[key.Owner+"/"+string(key.Kind)] = zone.cardIDs()
	}
	names := make([]string, 0, len(g.participants))
	for name := range g.participants {
		names = append(names, name)
	}
	return map[string]any{
		"game_id":      g.ID,
		"participants": names,
		"zones":        zones,
		"cards":        len(g.cards),
		"arrows":       len(g.arrows),
		"seed":         g.rng.Seed(),
	}
}
