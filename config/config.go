// Package config loads the settings of a WebSocket server process from a
// YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyListen      = errors.New("config: listen address is empty")
	ErrInvalidPath      = errors.New("config: path must start with /")
	ErrNegativeValue    = errors.New("config: value must not be negative")
	ErrInvalidLogLevel  = errors.New("config: unknown log level")
	ErrInvalidEchoBurst = errors.New("config: echo_burst must be positive when echo_rate is set")
)

// Config holds the server settings. Zero durations and limits disable the
// corresponding bound.
type Config struct {
	Listen           string        `yaml:"listen"`
	Path             string        `yaml:"path"`
	MaxConnections   int           `yaml:"max_connections"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	CloseTimeout     time.Duration `yaml:"close_timeout"`
	ReadLimit        int64         `yaml:"read_limit"`
	ServerName       string        `yaml:"server_name"`
	LogLevel         string        `yaml:"log_level"`

	// EchoRate is the number of messages per second echoed on one
	// connection. Zero disables rate limiting.
	EchoRate  float64 `yaml:"echo_rate"`
	EchoBurst int     `yaml:"echo_burst"`
}

// Default returns the settings used for keys missing from the file.
func Default() Config {
	return Config{
		Listen:           "127.0.0.1:8080",
		Path:             "/",
		MaxConnections:   1024,
		HandshakeTimeout: 10 * time.Second,
		CloseTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
		ServerName:       "wsengine",
		LogLevel:         "info",
	}
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return ErrEmptyListen
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, c.Path)
	}

	for name, v := range map[string]int64{
		"max_connections":   int64(c.MaxConnections),
		"handshake_timeout": int64(c.HandshakeTimeout),
		"close_timeout":     int64(c.CloseTimeout),
		"read_limit":        c.ReadLimit,
		"echo_burst":        int64(c.EchoBurst),
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeValue, name)
		}
	}

	if c.EchoRate < 0 {
		return fmt.Errorf("%w: echo_rate", ErrNegativeValue)
	}
	if c.EchoRate > 0 && c.EchoBurst == 0 {
		return ErrInvalidEchoBurst
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// Level returns the slog level named by LogLevel. An empty name means info.
func (c Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger returns a JSON logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
}
