// Package config loads host settings from POE2ARB_* environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

// Prefix is prepended to every variable name, e.g. POE2ARB_SERVER_PORT.
const Prefix = "POE2ARB"

// Config holds host-level settings. The fetch allowlist, user agent and
// request timeout are fixed in the gateway.
type Config struct {
	ServerHost  string   `split_words:"true" default:"127.0.0.1"`
	ServerPort  int      `split_words:"true" default:"1421"`
	CORSOrigins []string `split_words:"true" default:"tauri://localhost,http://localhost:1420"`
	LogLevel    string   `split_words:"true" default:"info"`
	LogDev      bool     `split_words:"true" default:"false"`
	// SnapshotDir empty means ~/.poe2arb/snapshots.
	SnapshotDir string `split_words:"true"`
	// Rate limit for POST /invoke, shared by all callers.
	RateLimitEnabled bool `split_words:"true" default:"true"`
	RateLimitRPS     int  `split_words:"true" default:"10"`
	RateLimitBurst   int  `split_words:"true" default:"20"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w: %w", poeerrors.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		ServerHost:       "127.0.0.1",
		ServerPort:       1421,
		CORSOrigins:      []string{"tauri://localhost", "http://localhost:1420"},
		LogLevel:         "info",
		LogDev:           false,
		RateLimitEnabled: true,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
	}
}

// Validate rejects settings the server or logger cannot use.
func (c *Config) Validate() error {
	if c.ServerHost == "" {
		return fmt.Errorf("%w: %s_SERVER_HOST is empty", poeerrors.ErrInvalidConfig, Prefix)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: %s_SERVER_PORT %d out of range", poeerrors.ErrInvalidConfig, Prefix, c.ServerPort)
	}
	if c.RateLimitEnabled && (c.RateLimitRPS < 1 || c.RateLimitBurst < 1) {
		return fmt.Errorf("%w: %s_RATE_LIMIT_RPS and %s_RATE_LIMIT_BURST must be positive", poeerrors.ErrInvalidConfig, Prefix, Prefix)
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("%w: %s_CORS_ORIGINS is empty", poeerrors.ErrInvalidConfig, Prefix)
	}
	for _, origin := range c.CORSOrigins {
		if origin != "*" && !strings.Contains(origin, "://") {
			return fmt.Errorf("%w: %s_CORS_ORIGINS entry %q has no scheme", poeerrors.ErrInvalidConfig, Prefix, origin)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s_LOG_LEVEL %q", poeerrors.ErrInvalidConfig, Prefix, c.LogLevel)
	}
	return nil
}

// Addr is the listen address for the invoke server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

// IsLoopback reports whether the server binds only to a loopback interface.
func (c *Config) IsLoopback() bool {
	if c.ServerHost == "localhost" {
		return true
	}
	ip := net.ParseIP(c.ServerHost)
	return ip != nil && ip.IsLoopback()
}
