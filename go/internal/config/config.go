// Package config loads the table client settings from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/holdem/go/internal/socketio"
)

// DefaultAPIURL is the local development server.
const DefaultAPIURL = "http://localhost:5000"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Player  PlayerConfig  `yaml:"player"`
	Table   TableConfig   `yaml:"table"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Inspect InspectConfig `yaml:"inspect"`

	LogLevel string `yaml:"log_level"`
}

// ServerConfig describes how to reach the game server.
type ServerConfig struct {
	URL                  string        `yaml:"url"`
	Path                 string        `yaml:"path"`
	Transports           []string      `yaml:"transports"`
	Reconnection         bool          `yaml:"reconnection"`
	ReconnectionAttempts int           `yaml:"reconnection_attempts"`
	ReconnectionDelay    time.Duration `yaml:"reconnection_delay"`
	AutoConnect          bool          `yaml:"auto_connect"`
}

type PlayerConfig struct {
	Name string `yaml:"name"`
	// Room joins an existing room instead of creating one.
	Room string `yaml:"room"`
}

type TableConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// MirrorConfig enables publishing table views to NATS when URL is set.
type MirrorConfig struct {
	URL            string `yaml:"url"`
	Stream         string `yaml:"stream"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	IncludePrivate bool   `yaml:"include_private"`
}

// Enabled reports whether a NATS server was configured.
func (m MirrorConfig) Enabled() bool {
	return m.URL != ""
}

// InspectConfig enables the local state endpoint when Addr is set.
type InspectConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	opts := socketio.DefaultOptions()
	return Config{
		Server: ServerConfig{
			URL:                  DefaultAPIURL,
			Path:                 opts.Path,
			Transports:           opts.Transports,
			Reconnection:         opts.Reconnection,
			ReconnectionAttempts: opts.ReconnectionAttempts,
			ReconnectionDelay:    opts.ReconnectionDelay,
			AutoConnect:          opts.AutoConnect,
		},
		Player: PlayerConfig{Name: "Player"},
		Table:  TableConfig{TickInterval: 250 * time.Millisecond},
		Mirror: MirrorConfig{
			Stream:        "POKER_TABLE",
			SubjectPrefix: "poker.table",
		},
		LogLevel: "info",
	}
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are never overwritten.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Server.URL = getEnv("POKER_API_URL", c.Server.URL)
	c.Server.Path = getEnv("POKER_SOCKET_PATH", c.Server.Path)
	if v := os.Getenv("POKER_TRANSPORTS"); v != "" {
		c.Server.Transports = splitList(v)
	}
	c.Server.Reconnection = getEnvAsBool("POKER_RECONNECT", c.Server.Reconnection, &errs)
	c.Server.ReconnectionAttempts = getEnvAsInt("POKER_RECONNECT_ATTEMPTS", c.Server.ReconnectionAttempts, &errs)
	c.Server.ReconnectionDelay = getEnvAsDuration("POKER_RECONNECT_DELAY", c.Server.ReconnectionDelay, &errs)
	c.Server.AutoConnect = getEnvAsBool("POKER_AUTOCONNECT", c.Server.AutoConnect, &errs)

	c.Player.Name = getEnv("POKER_PLAYER_NAME", c.Player.Name)
	c.Player.Room = strings.ToUpper(getEnv("POKER_ROOM", c.Player.Room))

	c.Table.TickInterval = getEnvAsDuration("POKER_TICK_INTERVAL", c.Table.TickInterval, &errs)

	c.Mirror.URL = getEnv("NATS_URL", c.Mirror.URL)
	c.Mirror.SubjectPrefix = getEnv("POKER_MIRROR_SUBJECT", c.Mirror.SubjectPrefix)
	c.Mirror.IncludePrivate = getEnvAsBool("POKER_MIRROR_PRIVATE", c.Mirror.IncludePrivate, &errs)

	c.Inspect.Addr = getEnv("POKER_INSPECT_ADDR", c.Inspect.Addr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, errors.New("server url is required"))
	} else if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("server url %q is not absolute", c.Server.URL))
	} else {
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			errs = append(errs, fmt.Errorf("server url scheme %q not supported", u.Scheme))
		}
	}

	if c.Server.Reconnection && c.Server.ReconnectionAttempts <= 0 {
		errs = append(errs, errors.New("reconnection attempts must be positive"))
	}
	if c.Server.Reconnection && c.Server.ReconnectionDelay <= 0 {
		errs = append(errs, errors.New("reconnection delay must be positive"))
	}
	if c.Table.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if strings.TrimSpace(c.Player.Name) == "" {
		errs = append(errs, errors.New("player name is required"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SocketOptions converts the server section to connection options.
func (c Config) SocketOptions() socketio.Options {
	opts := socketio.DefaultOptions()
	opts.Path = c.Server.Path
	opts.Transports = append([]string(nil), c.Server.Transports...)
	opts.Reconnection = c.Server.Reconnection
	opts.ReconnectionAttempts = c.Server.ReconnectionAttempts
	opts.ReconnectionDelay = c.Server.ReconnectionDelay
	opts.AutoConnect = c.Server.AutoConnect
	return opts
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvAsDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
