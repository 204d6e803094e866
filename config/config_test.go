package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "/", cfg.Path)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, int64(1<<20), cfg.ReadLimit)
	assert.Zero(t, cfg.EchoRate)
}

func TestParse(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		cfg, err := Parse([]byte(`
listen: ":9001"
path: /ws
max_connections: 10
handshake_timeout: 2s
close_timeout: 1500ms
read_limit: 4096
server_name: echo
log_level: debug
echo_rate: 20
echo_burst: 5
`))
		require.NoError(t, err)

		assert.Equal(t, Config{
			Listen:           ":9001",
			Path:             "/ws",
			MaxConnections:   10,
			HandshakeTimeout: 2 * time.Second,
			CloseTimeout:     1500 * time.Millisecond,
			ReadLimit:        4096,
			ServerName:       "echo",
			LogLevel:         "debug",
			EchoRate:         20,
			EchoBurst:        5,
		}, cfg)
	})

	t.Run("missing keys keep defaults", func(t *testing.T) {
		cfg, err := Parse([]byte("listen: \":9002\"\n"))
		require.NoError(t, err)

		want := Default()
		want.Listen = ":9002"
		assert.Equal(t, want, cfg)
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse([]byte("listen: \":9002\"\nport: 80\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Parse([]byte("close_timeout: soon\n"))
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Parse([]byte("read_limit: -1\n"))
		assert.ErrorIs(t, err, ErrNegativeValue)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"empty listen", func(c *Config) { c.Listen = " " }, ErrEmptyListen},
		{"relative path", func(c *Config) { c.Path = "ws" }, ErrInvalidPath},
		{"negative max connections", func(c *Config) { c.MaxConnections = -1 }, ErrNegativeValue},
		{"negative handshake timeout", func(c *Config) { c.HandshakeTimeout = -time.Second }, ErrNegativeValue},
		{"negative close timeout", func(c *Config) { c.CloseTimeout = -time.Second }, ErrNegativeValue},
		{"negative echo rate", func(c *Config) { c.EchoRate = -1 }, ErrNegativeValue},
		{"rate without burst", func(c *Config) { c.EchoRate = 5 }, ErrInvalidEchoBurst},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"valid rate", func(c *Config) { c.EchoRate, c.EchoBurst = 5, 1 }, nil},
		{"zero limits", func(c *Config) { c.MaxConnections, c.ReadLimit = 0, 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(dir, "server.yaml")
		require.NoError(t, os.WriteFile(path, []byte("path: /echo\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/echo", cfg.Path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, Config{LogLevel: tt.name}.Level())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{LogLevel: "warn"}.NewLogger(&buf)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", slog.String("session", "abc"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "abc", entry["session"])
}
