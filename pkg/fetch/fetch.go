// Package fetch defines the remote data source abstraction. The audit engine
// depends only on the Fetcher interface; any transport returning the full
// issue dataset for a (release, architecture) pair satisfies it.
package fetch

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/types"
)

// ErrFetch is wrapped by all remote-source failures, including malformed
// response data. An empty-but-successful dataset is not an error.
var ErrFetch = xerrors.New("issue fetch failed")

type Fetcher interface {
	// Fetch returns the complete current dataset for the given partition.
	Fetch(ctx context.Context, key types.CacheKey) (types.Dataset, error)
}
