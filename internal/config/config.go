package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	enrich "github.com/syntrixbase/userindex/internal/enrich/config"
	index "github.com/syntrixbase/userindex/internal/index/config"
	indexer "github.com/syntrixbase/userindex/internal/indexer/config"
	"github.com/syntrixbase/userindex/internal/metrics"
	pubsub "github.com/syntrixbase/userindex/internal/pubsub/config"
	puller "github.com/syntrixbase/userindex/internal/puller/config"
	query "github.com/syntrixbase/userindex/internal/query/config"
	"github.com/syntrixbase/userindex/internal/server"
	storage "github.com/syntrixbase/userindex/internal/storage/config"
	users "github.com/syntrixbase/userindex/internal/users/config"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the main configuration file, relative to the working directory.
const DefaultPath = "config/config.yml"

// Config holds the application configuration
type Config struct {
	// DataDir is the base directory for the on-disk index and local pictures.
	DataDir string `yaml:"data_dir"`

	Server  server.Config  `yaml:"server"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics metrics.Config `yaml:"metrics"`

	Storage storage.Config `yaml:"storage"`
	Index   index.Config   `yaml:"index"`
	Indexer indexer.Config `yaml:"indexer"`
	Puller  puller.Config  `yaml:"puller"`
	Query   query.Config   `yaml:"query"`
	Enrich  enrich.Config  `yaml:"enrich"`
	Users   users.Config   `yaml:"users"`
	NATS    pubsub.Config  `yaml:"nats"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Server:  server.DefaultConfig(),
		Logging: DefaultLoggingConfig(),
		Metrics: metrics.DefaultConfig(),
		Storage: storage.DefaultConfig(),
		Index:   index.DefaultConfig(),
		Indexer: indexer.DefaultConfig(),
		Puller:  puller.DefaultConfig(),
		Query:   query.DefaultConfig(),
		Enrich:  enrich.DefaultConfig(),
		Users:   users.DefaultConfig(),
		NATS:    pubsub.DefaultConfig(),
	}
}

// LoadConfig loads configuration from the given file and its sibling config.local.yml.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults -> ApplyEnvOverrides -> ResolvePaths -> Validate
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// Defaults first so YAML can override them, including bool fields
	cfg := Default()

	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	configDir := filepath.Dir(path)
	if err := loadFile(filepath.Join(configDir, "config.local.yml"), cfg); err != nil {
		return nil, err
	}

	if val := os.Getenv("USERINDEX_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}
	dataDir := resolveDir(configDir, cfg.DataDir)

	if err := ApplyServiceConfigs(configDir, dataDir,
		&cfg.Server,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Storage,
		&cfg.Index,
		&cfg.Indexer,
		&cfg.Puller,
		&cfg.Query,
		&cfg.Enrich,
		&cfg.Users,
		&cfg.NATS,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.DataDir = dataDir

	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}

// resolveDir resolves a relative directory next to the config directory,
// so "data" ends up beside "config/", not inside it.
func resolveDir(configDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Clean(filepath.Join(filepath.Dir(configDir), dir))
}
