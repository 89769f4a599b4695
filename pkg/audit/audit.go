// Package audit orchestrates the vulnerability check: it keeps the issue
// cache populated and classifies every recorded issue for a queried package
// version into present, ignored or fixed.
package audit

import (
	"context"

	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/cache"
	"github.com/rotty/deb-audit/pkg/debver"
	"github.com/rotty/deb-audit/pkg/fetch"
	"github.com/rotty/deb-audit/pkg/log"
	"github.com/rotty/deb-audit/pkg/policy"
	"github.com/rotty/deb-audit/pkg/types"
)

type Engine struct {
	store   *cache.Store
	fetcher fetch.Fetcher
	policy  policy.Policy
	group   singleflight.Group
	logger  *log.Logger
}

type Option func(*Engine)

func WithPolicy(p policy.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

func New(store *cache.Store, fetcher fetch.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		fetcher: fetcher,
		policy:  policy.Default(),
		logger:  log.WithPrefix("audit"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Audit classifies every issue recorded for the package under the given
// partition. An unknown package yields a result with empty buckets, not an
// error. A version that fails to parse aborts only this query.
func (e *Engine) Audit(ctx context.Context, key types.CacheKey, pkgName, version string) (types.AuditResult, error) {
	ver, err := debver.NewVersion(version)
	if err != nil {
		return types.AuditResult{}, xerrors.Errorf("package %s: %w", pkgName, err)
	}

	entry, err := e.ensure(ctx, key)
	if err != nil {
		return types.AuditResult{}, err
	}

	result := types.AuditResult{
		Package:      pkgName,
		Architecture: key.Architecture,
		Version:      version,
		Release:      key.Release,
		Known:        entry.IsKnown(pkgName),
	}
	for _, rec := range entry.RecordsFor(pkgName) {
		class, err := e.policy.Classify(rec, ver)
		if err != nil {
			return types.AuditResult{}, xerrors.Errorf("package %s: %w", pkgName, err)
		}
		switch class {
		case policy.Ignored:
			result.Ignored = append(result.Ignored, rec)
		case policy.Fixed:
			result.Fixed = append(result.Fixed, rec)
		default:
			result.Present = append(result.Present, rec)
		}
	}
	return result, nil
}

// ensure returns the partition snapshot, fetching and storing the dataset on
// a cold (or stale) cache. Concurrent queries for the same partition share a
// single fetch; once a partition is warm the remote source is never
// contacted again for it.
func (e *Engine) ensure(ctx context.Context, key types.CacheKey) (*cache.Entry, error) {
	v, err, _ := e.group.Do(key.Name(), func() (interface{}, error) {
		entry, err := e.store.Get(key)
		if err != nil {
			return nil, err
		}
		if entry != nil && !e.store.IsStale(entry) {
			return entry, nil
		}

		e.logger.Info("Cold cache, loading issue data", log.String("partition", key.Name()))
		ds, err := e.fetcher.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if err = e.store.Put(key, ds); err != nil {
			return nil, err
		}

		entry, err = e.store.Get(key)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, xerrors.Errorf("partition %s vanished after store", key)
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cache.Entry), nil
}
