package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 64, cfg.Server.SendBuffer)
	assert.Equal(t, 2, cfg.Rooms.MaxPlayers)
	assert.Equal(t, ":memory:", cfg.Storage.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
  ping_interval: 5s
rooms:
  max_players: 3
log:
  format: json
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 3, cfg.Rooms.MaxPlayers)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROOMS_MAX_PLAYERS", "3")
	t.Setenv("STORAGE_PATH", "history.db")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Rooms.MaxPlayers)
	assert.Equal(t, "history.db", cfg.Storage.Path)
}

func TestLoadPortAlias(t *testing.T) {
	t.Setenv("PORT", "7070")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsSmallRooms(t *testing.T) {
	t.Setenv("ROOMS_MAX_PLAYERS", "1")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_players")
}

func TestValidateLogFormat(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Port: 80, SendBuffer: 1},
		Rooms:  RoomsConfig{MaxPlayers: 2},
		Log:    LogConfig{Format: "xml"},
	}
	require.Error(t, cfg.Validate())
	cfg.Log.Format = "json"
	require.NoError(t, cfg.Validate())
}
