package server

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the HTTP server.
type Config struct {
	Host string `yaml:"host"`

	HTTPPort         int           `yaml:"http_port"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`

	// RequestTimeout bounds API handlers. File downloads are not bounded.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodySize caps request bodies in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Lifecycle Configuration
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Requests allowed per Window for one client IP.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	// MaxClients bounds how many client limiters are tracked at once.
	MaxClients int `yaml:"max_clients"`
}

// DefaultConfig returns safe defaults for development.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		HTTPPort:         8080,
		HTTPReadTimeout:  10 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		RequestTimeout:   15 * time.Second,
		MaxBodySize:      1 << 20,
		RateLimit: RateLimitConfig{
			Requests:   300,
			Window:     time.Minute,
			MaxClients: 10000,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = defaults.HTTPPort
	}
	if c.HTTPReadTimeout == 0 {
		c.HTTPReadTimeout = defaults.HTTPReadTimeout
	}
	if c.HTTPWriteTimeout == 0 {
		c.HTTPWriteTimeout = defaults.HTTPWriteTimeout
	}
	if c.HTTPIdleTimeout == 0 {
		c.HTTPIdleTimeout = defaults.HTTPIdleTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = defaults.MaxBodySize
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = defaults.RateLimit.Requests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = defaults.RateLimit.Window
	}
	if c.RateLimit.MaxClients == 0 {
		c.RateLimit.MaxClients = defaults.RateLimit.MaxClients
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// PORT is honored for platforms that inject the listen port.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.HTTPPort = port
		}
	}
}

// ResolvePaths is a no-op: the server config has no paths.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return errors.New("server.http_port must be between 0 and 65535")
	}
	if c.MaxBodySize <= 0 {
		return errors.New("server.max_body_size must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("server.rate_limit requires positive requests and window")
	}
	return nil
}
