package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cardfree/card-server-go/internal/auth"
	"github.com/cardfree/card-server-go/internal/config"
	"github.com/cardfree/card-server-go/internal/game"
	"github.com/cardfree/card-server-go/internal/mail"
	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/repository"
	"github.com/cardfree/card-server-go/internal/room"
	"github.com/cardfree/card-server-go/internal/server"
	"github.com/cardfree/card-server-go/internal/session"
	"github.com/cardfree/card-server-go/internal/user"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting card server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sessionMgr := session.NewManager(cfg.Server.LeasePeriod, logger)
	logger.Info("session manager initialized",
		zap.Duration("lease_period", cfg.Server.LeasePeriod),
	)
	go sessionMgr.CleanupExpiredSessions(ctx)

	userRepo := repository.NewUserRepository(db)
	modRepo := repository.NewModerationRepository(db)
	deckRepo := repository.NewDeckRepository(db)
	replayRepo := repository.NewReplayRepository(db)

	userMgr, err := user.NewManager(userRepo, modRepo, user.Policy{
		Mode:              cfg.Auth.Mode,
		RequireActivation: cfg.Auth.RequireActivation,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize user manager", zap.Error(err))
	}
	logger.Info("user manager initialized", zap.String("auth_mode", cfg.Auth.Mode))

	tokenStore := auth.NewTokenStore(cfg.Auth.PasswordResetTokenTTL)
	logger.Info("auth token store initialized",
		zap.Duration("token_ttl", cfg.Auth.PasswordResetTokenTTL),
	)

	// Game events address sessions directly; room events address users.
	gameSink := func(sessionID string, c *protocol.GameEventContainer) bool {
		sess, ok := sessionMgr.GetSession(sessionID)
		if !ok {
			return false
		}
		return sess.Enqueue(&protocol.Envelope{Game: c})
	}
	roomNotifier := func(username string, env *protocol.Envelope) {
		if sess, ok := sessionMgr.SessionForUser(username); ok {
			sess.Enqueue(env)
		}
	}

	roomMgr := room.NewManager(cfg.Rooms, roomNotifier, logger)
	logger.Info("room manager initialized", zap.Int("rooms", len(roomMgr.Rooms())))

	gameMgr := game.NewManager(gameSink, replayRepo, game.Limits{
		MinPlayers:  cfg.Game.MinPlayers,
		MaxPlayers:  cfg.Game.MaxPlayers,
		IdleTimeout: cfg.Game.IdleTimeout,
	}, logger)
	logger.Info("game manager initialized",
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Duration("idle_timeout", cfg.Game.IdleTimeout),
	)
	go gameMgr.SweepIdle(ctx)

	mailClient := mail.NewClient(cfg.Mail, logger)

	transports := []server.Transport{
		server.NewTCPTransport(cfg.Server.TCPAddress, cfg.Server.MaxFrameBytes, logger),
		server.NewWebSocketTransport(cfg.Server.WebSocketAddress, cfg.Server.MaxFrameBytes, logger),
	}

	srv := server.New(
		cfg,
		sessionMgr,
		userMgr,
		roomMgr,
		gameMgr,
		deckRepo,
		tokenStore,
		mailClient,
		transports,
		version,
		logger,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx)
	}()

	logger.Info("card server initialized",
		zap.String("tcp_address", cfg.Server.TCPAddress),
		zap.String("websocket_address", cfg.Server.WebSocketAddress),
		zap.Int("worker_pool_size", cfg.Server.WorkerPoolSize),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	logger.Info("shutting down gracefully...")
	if env, err := protocol.NewSessionEvent(protocol.SessionEventServerMessage,
		protocol.ServerMessagePayload{Message: "server is shutting down"}); err == nil {
		sessionMgr.Broadcast(env)
	}
	cancel()

	gameMgr.CloseAll()
	sessionMgr.CloseAll()

	logger.Info("card server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
