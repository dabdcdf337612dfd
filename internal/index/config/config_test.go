package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigLifecycle(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.ResolvePaths("config", "data")

	assert.Equal(t, "users_index", cfg.Name)
	assert.Equal(t, filepath.Join("data", "users_index.bleve"), cfg.Path)
	assert.NoError(t, cfg.Validate())
}

func TestResolvePaths_Absolute(t *testing.T) {
	cfg := Config{Name: "users_index", Path: "/var/lib/idx"}
	cfg.ResolvePaths("config", "data")
	assert.Equal(t, "/var/lib/idx", cfg.Path)
}

func TestInMemory(t *testing.T) {
	t.Setenv("USERINDEX_INDEX_IN_MEMORY", "true")

	var cfg Config
	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()

	assert.True(t, cfg.InMemory)
	assert.Empty(t, cfg.Path)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingPath(t *testing.T) {
	cfg := Config{Name: "users_index"}
	assert.ErrorContains(t, cfg.Validate(), "index.path")
}
