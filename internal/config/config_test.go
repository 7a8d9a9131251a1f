package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  name: test-server\n"))
	require.NoError(t, err)

	assert.Equal(t, "test-server", cfg.Server.Name)
	assert.Equal(t, ":4747", cfg.Server.TCPAddress)
	assert.Equal(t, "reject", cfg.Server.SaturationPolicy)
	assert.Equal(t, 5*time.Minute, cfg.Server.LeasePeriod)
	assert.Equal(t, "open", cfg.Auth.Mode)
	assert.Equal(t, 8, cfg.Game.MaxPlayers)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  tcp_address: ":9999"
  saturation_policy: queue
  queue_size: 128
auth:
  mode: registered
  require_activation: true
game:
  max_players: 4
  pause_on_disconnect: true
rooms:
  - id: main
    name: Main Room
`))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.TCPAddress)
	assert.Equal(t, "queue", cfg.Server.SaturationPolicy)
	assert.Equal(t, 128, cfg.Server.QueueSize)
	assert.Equal(t, "registered", cfg.Auth.Mode)
	assert.True(t, cfg.Auth.RequireActivation)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.True(t, cfg.Game.PauseOnDisconnect)
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "main", cfg.Rooms[0].ID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "auth:\n  mode: anarchic\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server:\n  saturation_policy: drop\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "game:\n  min_players: 5\n  max_players: 2\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "cards", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cards sslmode=disable", c.DSN())
}
