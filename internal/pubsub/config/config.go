// Package config holds NATS settings for the resync trigger.
package config

import (
	"errors"
	"os"
)

type Config struct {
	// URL of the NATS server. Empty disables the resync listener.
	URL string `yaml:"url"`

	// ResyncSubject is the subject that triggers a bulk sync.
	ResyncSubject string `yaml:"resync_subject"`
}

func DefaultConfig() Config {
	return Config{
		ResyncSubject: "userindex.resync",
	}
}

func (c *Config) ApplyDefaults() {
	if c.ResyncSubject == "" {
		c.ResyncSubject = DefaultConfig().ResyncSubject
	}
}

func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("NATS_URL"); val != "" {
		c.URL = val
	}
}

func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	if c.URL != "" && c.ResyncSubject == "" {
		return errors.New("nats.resync_subject is required when nats.url is set")
	}
	return nil
}

// Enabled reports whether a NATS server is configured.
func (c *Config) Enabled() bool {
	return c.URL != ""
}
