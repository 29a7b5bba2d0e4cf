package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LARDER_CONFIG_PATH", "LARDER_DB_PATH", "LARDER_LOG_LEVEL",
		"LARDER_CHUNKER_MIN", "LARDER_CHUNKER_MAX", "LARDER_ORACLE_TIMEOUT_SECONDS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 15_000, cfg.Chunker.Min)
	assert.Equal(t, 80_000, cfg.Chunker.Max)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 120, cfg.Oracle.TimeoutSecs)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LARDER_DB_PATH", "/tmp/custom.db")
	t.Setenv("LARDER_LOG_LEVEL", "debug")
	t.Setenv("LARDER_CHUNKER_MIN", "2000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.DB.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2000, cfg.Chunker.Min)
}

func TestLoadInvalidEnvIntReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("LARDER_CHUNKER_MIN", "not-a-number")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadFromYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  path: /data/larder.db\nlog:\n  level: warn\n"), 0o644))
	t.Setenv("LARDER_CONFIG_PATH", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/larder.db", cfg.DB.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}
