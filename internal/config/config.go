package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration, loaded from YAML with
// environment overrides.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	Rooms    []RoomConfig   `mapstructure:"rooms"`
	Mail     MailConfig     `mapstructure:"mail"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	// TCPAddress accepts the raw length-prefixed protocol; WebSocketAddress
	// serves the same envelopes over WebSocket binary messages.
	TCPAddress       string        `mapstructure:"tcp_address"`
	WebSocketAddress string        `mapstructure:"websocket_address"`
	Name             string        `mapstructure:"name"`
	MaxSessions      int           `mapstructure:"max_sessions"`
	WorkerPoolSize   int           `mapstructure:"worker_pool_size"`
	// SaturationPolicy is "reject" or "queue".
	SaturationPolicy string        `mapstructure:"saturation_policy"`
	QueueSize        int           `mapstructure:"queue_size"`
	LeasePeriod      time.Duration `mapstructure:"lease_period"`
	MaxFrameBytes    uint32        `mapstructure:"max_frame_bytes"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type AuthConfig struct {
	// Mode is "open" (guests allowed) or "registered".
	Mode                  string        `mapstructure:"mode"`
	RequireActivation     bool          `mapstructure:"require_activation"`
	MinPasswordLength     int           `mapstructure:"min_password_length"`
	PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl"`
}

type GameConfig struct {
	MinPlayers        int           `mapstructure:"min_players"`
	MaxPlayers        int           `mapstructure:"max_players"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	PauseOnDisconnect bool          `mapstructure:"pause_on_disconnect"`
}

type RoomConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type MailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	From    string `mapstructure:"from"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration file at path, applying defaults and
// CARD_SERVER_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CARD_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.tcp_address", ":4747")
	v.SetDefault("server.websocket_address", ":4748")
	v.SetDefault("server.name", "card-server")
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.worker_pool_size", 256)
	v.SetDefault("server.saturation_policy", "reject")
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.lease_period", 5*time.Minute)
	v.SetDefault("server.max_frame_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cardserver")
	v.SetDefault("database.name", "cardserver")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("auth.mode", "open")
	v.SetDefault("auth.require_activation", false)
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("auth.password_reset_token_ttl", time.Hour)

	v.SetDefault("game.min_players", 1)
	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.idle_timeout", 30*time.Minute)
	v.SetDefault("game.pause_on_disconnect", false)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.from", "noreply@localhost")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case "open", "registered":
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	switch c.Server.SaturationPolicy {
	case "reject", "queue":
	default:
		return fmt.Errorf("config: unknown saturation policy %q", c.Server.SaturationPolicy)
	}
	if c.Game.MinPlayers < 1 || c.Game.MaxPlayers < c.Game.MinPlayers {
		return fmt.Errorf("config: invalid player bounds [%d, %d]", c.Game.MinPlayers, c.Game.MaxPlayers)
	}
	if c.Server.WorkerPoolSize < 1 {
		return fmt.Errorf("config: worker pool size must be positive")
	}
	return nil
}
