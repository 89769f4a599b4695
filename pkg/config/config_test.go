package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotty/deb-audit/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := config.Load(writeConfig(t, `release = "bullseye"`))
		require.NoError(t, err)

		assert.Equal(t, "bullseye", cfg.Release)
		assert.Equal(t, config.Default().UDD, cfg.UDD)
		assert.Equal(t, config.Default().CacheDir, cfg.CacheDir)
	})

	t.Run("udd section", func(t *testing.T) {
		cfg, err := config.Load(writeConfig(t, `
release = "buster"
cache_dir = "/var/cache/deb-audit"

[udd]
host = "localhost"
port = 15432
user = "udd"
password = "udd"
dbname = "udd"
sslmode = "disable"
`))
		require.NoError(t, err)

		assert.Equal(t, "buster", cfg.Release)
		assert.Equal(t, "/var/cache/deb-audit", cfg.CacheDir)
		assert.Equal(t, "localhost", cfg.UDD.Host)
		assert.Equal(t, 15432, cfg.UDD.Port)
		assert.Equal(t, "disable", cfg.UDD.SSLMode)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, `releese = "buster"`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("bad syntax", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, `release = `))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "stable", cfg.Release)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, "udd-mirror.debian.net", cfg.UDD.Host)
	assert.Equal(t, 5432, cfg.UDD.Port)
}
