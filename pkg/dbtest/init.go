package dbtest

import (
	"testing"

	fixtures "github.com/aquasecurity/bolt-fixtures"
	"github.com/stretchr/testify/require"

	"github.com/rotty/deb-audit/pkg/cache"
)

// InitCache creates a temporary cache directory and preloads the bolt file
// from the given fixture files. It returns the cache directory.
func InitCache(t *testing.T, fixtureFiles []string) string {
	t.Helper()

	cacheDir := t.TempDir()
	dbPath := cache.Path(cacheDir)

	loader, err := fixtures.New(dbPath, fixtureFiles)
	require.NoError(t, err)
	require.NoError(t, loader.Load())
	require.NoError(t, loader.Close())

	return cacheDir
}
