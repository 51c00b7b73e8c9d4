// Package config loads the cliffbrush tool configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/cliffbrush/internal/journal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds tool-wide configuration settings. The logging section of the
// same file is read by the logger package.
type Config struct {
	Rules       string            `yaml:"rules"`
	Theater     string            `yaml:"theater"`
	Filter      FilterConfig      `yaml:"filter"`
	Server      ServerConfig      `yaml:"server"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	Journal     JournalConfig     `yaml:"journal"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// FilterConfig holds the connected-tile filter defaults for new sessions.
type FilterConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds the palette service listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`

	// TrustProxyHeaders counts clients by X-Forwarded-For or X-Real-IP. Only
	// enable it behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// JournalConfig enables session persistence.
type JournalConfig struct {
	Enabled        bool `yaml:"enabled"`
	journal.Config `yaml:",inline"`
}

// MetricsConfig controls the Prometheus endpoint of the palette service.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a Config with secure defaults.
func DefaultConfig() *Config {
	return &Config{
		Rules:   "data/rules.yaml",
		Theater: "data/theater.yaml",
		Filter: FilterConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		Journal: JournalConfig{
			Enabled: false,
			Config:  journal.DefaultConfig("data/journal.db"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from a YAML file over the defaults, then
// applies environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return config, err
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return DefaultConfig(), fmt.Errorf("failed to parse config YAML: %w", err)
			}
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if driver := os.Getenv("CLIFFBRUSH_JOURNAL_DRIVER"); driver != "" {
		c.Journal.Driver = driver
		c.Journal.Enabled = true
	}
	if path := os.Getenv("CLIFFBRUSH_SQLITE_PATH"); path != "" {
		c.Journal.SQLitePath = path
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Connections.MaxPerIP < 0 || c.Connections.MaxTotal < 0 {
		return fmt.Errorf("%w: connection limits must not be negative", ErrInvalidConfig)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: websocket.max_message_size must be positive", ErrInvalidConfig)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path %q must start with /", ErrInvalidConfig, c.Metrics.Path)
	}
	if c.Journal.Enabled {
		switch journal.DialectType(c.Journal.Driver) {
		case journal.DialectSQLite:
			if c.Journal.SQLitePath == "" {
				return fmt.Errorf("%w: journal.sqlite_path is empty", ErrInvalidConfig)
			}
		case journal.DialectPostgres:
		default:
			return fmt.Errorf("%w: unknown journal driver %q", ErrInvalidConfig, c.Journal.Driver)
		}
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	// "http://localhost:3000" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return strings.EqualFold(originHost, requestHost)
}
