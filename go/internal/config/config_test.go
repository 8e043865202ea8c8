package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/holdem/go/internal/socketio"
)

var envKeys = []string{
	"POKER_API_URL", "POKER_SOCKET_PATH", "POKER_TRANSPORTS", "POKER_RECONNECT",
	"POKER_RECONNECT_ATTEMPTS", "POKER_RECONNECT_DELAY", "POKER_AUTOCONNECT",
	"POKER_PLAYER_NAME", "POKER_ROOM", "POKER_TICK_INTERVAL", "NATS_URL",
	"POKER_MIRROR_SUBJECT", "POKER_MIRROR_PRIVATE", "POKER_INSPECT_ADDR", "LOG_LEVEL",
}

// clearEnv unsets every key the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.Server.URL)
	assert.Equal(t, "/socket.io", cfg.Server.Path)
	assert.Equal(t, []string{socketio.TransportWebSocket}, cfg.Server.Transports)
	assert.True(t, cfg.Server.Reconnection)
	assert.Equal(t, 10, cfg.Server.ReconnectionAttempts)
	assert.Equal(t, 800*time.Millisecond, cfg.Server.ReconnectionDelay)
	assert.True(t, cfg.Server.AutoConnect)
	assert.Equal(t, "Player", cfg.Player.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Table.TickInterval)
	assert.False(t, cfg.Mirror.Enabled())
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "table.yaml", `
server:
  url: https://poker.example.com
  reconnection_attempts: 3
  reconnection_delay: 2s
player:
  name: Alice
  room: ab12
mirror:
  url: nats://localhost:4222
log_level: debug
`)
	t.Setenv("POKER_PLAYER_NAME", "Bob")
	t.Setenv("POKER_TICK_INTERVAL", "100ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://poker.example.com", cfg.Server.URL)
	assert.Equal(t, 3, cfg.Server.ReconnectionAttempts)
	assert.Equal(t, 2*time.Second, cfg.Server.ReconnectionDelay)
	assert.True(t, cfg.Server.Reconnection, "unset keys keep their defaults")
	assert.Equal(t, "Bob", cfg.Player.Name)
	assert.Equal(t, "AB12", cfg.Player.Room)
	assert.Equal(t, 100*time.Millisecond, cfg.Table.TickInterval)
	assert.True(t, cfg.Mirror.Enabled())
	assert.Equal(t, "POKER_TABLE", cfg.Mirror.Stream)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoad_RejectsBadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_RECONNECT_ATTEMPTS", "lots")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "POKER_RECONNECT_ATTEMPTS")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Server.URL = "" }},
		{"relative url", func(c *Config) { c.Server.URL = "localhost:5000" }},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://localhost" }},
		{"no attempts", func(c *Config) { c.Server.ReconnectionAttempts = 0 }},
		{"no delay", func(c *Config) { c.Server.ReconnectionDelay = 0 }},
		{"no tick", func(c *Config) { c.Table.TickInterval = 0 }},
		{"blank name", func(c *Config) { c.Player.Name = "  " }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := Default()
	cfg.Server.Reconnection = false
	cfg.Server.ReconnectionAttempts = 0
	assert.NoError(t, cfg.Validate(), "attempts are irrelevant without reconnection")
}

func TestSocketOptions(t *testing.T) {
	cfg := Default()
	cfg.Server.Path = "/ws"
	cfg.Server.ReconnectionAttempts = 4
	cfg.Server.AutoConnect = false

	opts := cfg.SocketOptions()
	assert.Equal(t, "/ws", opts.Path)
	assert.Equal(t, 4, opts.ReconnectionAttempts)
	assert.False(t, opts.AutoConnect)
	assert.Equal(t, "/", opts.Namespace)
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKER_ROOM", "KEEP")
	path := writeFile(t, ".env", "POKER_PLAYER_NAME=Carol\nPOKER_ROOM=XX00\n")
	t.Cleanup(func() { _ = os.Unsetenv("POKER_PLAYER_NAME") })

	require.NoError(t, LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Carol", cfg.Player.Name)
	assert.Equal(t, "KEEP", cfg.Player.Room)
}
