package server

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardfree/card-server-go/internal/auth"
	"github.com/cardfree/card-server-go/internal/config"
	"github.com/cardfree/card-server-go/internal/game"
	"github.com/cardfree/card-server-go/internal/mail"
	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/room"
	"github.com/cardfree/card-server-go/internal/session"
	"github.com/cardfree/card-server-go/internal/user"
)

// protocolVersion is bumped on every incompatible envelope change.
const protocolVersion = 14

// DeckStore persists saved decks.
type DeckStore interface {
	SaveDeck(ctx context.Context, username, name string, cards []string) error
	LoadDeck(ctx context.Context, username, name string) ([]string, error)
	ListDecks(ctx context.Context, username string) ([]string, error)
}

// Server owns the connection lifecycle: it accepts connections from its
// transports, runs one worker per connection and routes commands to the
// session, room and game layers.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	version string

	sessions *session.Manager
	users    *user.Manager
	rooms    *room.Manager
	games    *game.Manager
	decks    DeckStore
	tokens   *auth.TokenStore
	mailer   mail.Client

	pool       *workerPool
	transports []Transport
}

// New wires the server. decks may be nil when deck persistence is disabled.
func New(
	cfg *config.Config,
	sessions *session.Manager,
	users *user.Manager,
	rooms *room.Manager,
	games *game.Manager,
	decks DeckStore,
	tokens *auth.TokenStore,
	mailer mail.Client,
	transports []Transport,
	version string,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		version:    version,
		sessions:   sessions,
		users:      users,
		rooms:      rooms,
		games:      games,
		decks:      decks,
		tokens:     tokens,
		mailer:     mailer,
		pool:       newWorkerPool(cfg.Server.WorkerPoolSize, cfg.Server.QueueSize, cfg.Server.SaturationPolicy),
		transports: transports,
	}
}

// Run serves all transports until ctx is done or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.transports {
		t := t
		g.Go(func() error {
			return t.Serve(ctx, func(c Conn) { s.handleConn(ctx, c) })
		})
	}
	return g.Wait()
}

// handleConn is the per-connection worker. It owns the session for the
// connection's lifetime; a writer goroutine drains the session outbox.
func (s *Server) handleConn(ctx context.Context, conn Conn) {
	defer conn.Close()

	if !s.pool.Acquire(ctx) {
		s.logger.Warn("connection rejected, worker pool saturated",
			zap.String("remote", conn.RemoteAddr()),
		)
		if env, err := protocol.NewSessionEvent(protocol.SessionEventConnectionClosed,
			protocol.ConnectionClosedPayload{Reason: "server busy"}); err == nil {
			conn.WriteEnvelope(env)
		}
		return
	}
	defer s.pool.Release()

	sess := s.sessions.CreateSession()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for env := range sess.Outbox() {
			if err := conn.WriteEnvelope(env); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// disconnect closes the session outbox, which lets the writer drain
	// and exit, so it must run before the wait on writerDone.
	defer func() { <-writerDone }()
	defer s.disconnect(ctx, sess)

	s.identify(sess)

	s.logger.Info("connection accepted",
		zap.String("session_id", sess.ID),
		zap.String("remote", conn.RemoteAddr()),
	)

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedFrame) || errors.Is(err, protocol.ErrFrameTooLarge) {
				s.logger.Warn("closing connection on malformed frame",
					zap.String("session_id", sess.ID),
					zap.Error(err),
				)
			}
			return
		}
		if env.Command == nil {
			// Clients send only commands.
			sess.Enqueue(protocol.ErrorResponse(0, protocol.RespInvalidCommand))
			continue
		}

		resp := s.route(ctx, sess, env.Command)
		if !sess.Enqueue(resp) {
			// The response cannot be dropped without breaking command
			// correlation, so a saturated outbox ends the connection.
			s.logger.Warn("session outbox overflow, closing connection",
				zap.String("session_id", sess.ID),
			)
			return
		}
	}
}

func (s *Server) identify(sess *session.Session) {
	env, err := protocol.NewSessionEvent(protocol.SessionEventServerIdentification,
		protocol.ServerIdentificationPayload{
			ServerName:      s.cfg.Server.Name,
			ServerVersion:   s.version,
			ProtocolVersion: protocolVersion,
			SessionID:       sess.ID,
		})
	if err != nil {
		s.logger.Error("failed to encode server identification", zap.Error(err))
		return
	}
	sess.Enqueue(env)
}

// disconnect tears down everything the session touched: room memberships,
// game participations and the session itself. Games keep the participant as
// disconnected so a reconnect can resume.
func (s *Server) disconnect(ctx context.Context, sess *session.Session) {
	username := sess.Username()
	sess.MarkDisconnected()

	if username != "" {
		s.rooms.RemoveEverywhere(username)
		for _, g := range s.games.GamesWithParticipant(username) {
			g.Disconnect(ctx, username)
		}
	}
	s.sessions.RemoveSession(sess.ID)

	s.logger.Info("connection closed",
		zap.String("session_id", sess.ID),
		zap.String("username", username),
	)
}
