package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/preserve/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
aliases:
  prod: mongodb://db.example.com/records
  local: shelf:///tmp/store.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mongodb://db.example.com/records", cfg.Resolve("prod"))
	assert.Equal(t, "shelf:///tmp/store.db", cfg.Resolve("local"))
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "log_level: [unclosed")
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("PRESERVE_TEST_HOST", "db.internal")

	path := writeConfig(t, `
aliases:
  prod: mongodb://${PRESERVE_TEST_HOST}/records
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db.internal/records", cfg.Resolve("prod"))
}

func TestResolvePassThrough(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory://", cfg.Resolve("memory://"))
}

func TestLoadDefault(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := writeConfig(t, "log_level: info")
		t.Setenv(EnvConfigPath, path)

		cfg, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))

		cfg, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "log_level: info")
		t.Setenv(EnvConfigPath, path)
		t.Setenv(EnvLogLevel, "error")

		cfg, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.LogLevel)
	})
}
