// Package cache persists issue datasets per (release, architecture)
// partition. Each partition lives in its own root bucket of a single bbolt
// file, so a put replaces the whole partition in one transaction and readers
// never observe a half-written entry.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/rotty/deb-audit/pkg/log"
	"github.com/rotty/deb-audit/pkg/types"
)

// ErrIO is wrapped by all storage-layer failures. A missing partition is not
// an error; Get signals it with a nil entry.
var ErrIO = xerrors.New("cache I/O error")

const (
	dbFile = "deb-audit.db"

	issuesBucket   = "issues"
	packagesBucket = "packages"
	metadataKey    = "metadata"
)

// Entry is one loaded partition snapshot.
type Entry struct {
	Key      types.CacheKey
	Records  []types.IssueRecord
	Metadata types.Metadata

	known map[string]struct{}
}

// RecordsFor returns the records for one binary package, in stored order.
func (e *Entry) RecordsFor(pkgName string) []types.IssueRecord {
	var records []types.IssueRecord
	for _, rec := range e.Records {
		if rec.PkgName == pkgName {
			records = append(records, rec)
		}
	}
	return records
}

// IsKnown reports whether the release ships the given binary package.
func (e *Entry) IsKnown(pkgName string) bool {
	_, ok := e.known[pkgName]
	return ok
}

// StalePolicy decides whether a cached partition needs re-fetching.
type StalePolicy interface {
	Stale(meta types.Metadata, now time.Time) bool
}

type neverStale struct{}

func (neverStale) Stale(types.Metadata, time.Time) bool { return false }

// NeverStale is the default policy: the cache is refreshed only by deleting
// it.
var NeverStale StalePolicy = neverStale{}

// MaxAge treats partitions older than the given duration as stale.
type MaxAge time.Duration

func (m MaxAge) Stale(meta types.Metadata, now time.Time) bool {
	return now.Sub(meta.FetchedAt) > time.Duration(m)
}

type Store struct {
	db     *bolt.DB
	clock  clock.Clock
	policy StalePolicy
	logger *log.Logger
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func WithStalePolicy(p StalePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// Path returns the bolt file location below the cache directory.
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, dbFile)
}

// NewStore opens (creating if necessary) the cache below cacheDir. The
// location is an explicit parameter so tests can point each case at its own
// temporary directory.
func NewStore(cacheDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, xerrors.Errorf("%w: failed to mkdir %s: %v", ErrIO, cacheDir, err)
	}

	dbPath := Path(cacheDir)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, xerrors.Errorf("%w: failed to open %s: %v", ErrIO, dbPath, err)
	}

	s := &Store{
		db:     db,
		clock:  clock.RealClock{},
		policy: NeverStale,
		logger: log.WithPrefix("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("Opened issue cache", log.FilePath(dbPath))
	return s, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return xerrors.Errorf("%w: failed to close cache: %v", ErrIO, err)
	}
	return nil
}

// Get loads the snapshot for a key. A cold cache returns (nil, nil).
func (s *Store) Get(key types.CacheKey) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(key.Name()))
		if root == nil {
			return nil
		}

		e := &Entry{
			Key:   key,
			known: map[string]struct{}{},
		}

		if raw := root.Get([]byte(metadataKey)); raw != nil {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				return xerrors.Errorf("corrupt metadata for %s: %v", key, err)
			}
		}

		if pkgs := root.Bucket([]byte(packagesBucket)); pkgs != nil {
			err := pkgs.ForEach(func(k, _ []byte) error {
				e.known[string(k)] = struct{}{}
				return nil
			})
			if err != nil {
				return err
			}
		}

		issues := root.Bucket([]byte(issuesBucket))
		if issues == nil {
			entry = e
			return nil
		}
		err := issues.ForEach(func(pkgName, v []byte) error {
			if v != nil {
				// Only nested buckets are expected here.
				return nil
			}
			pkgBkt := issues.Bucket(pkgName)
			return pkgBkt.ForEach(func(_, raw []byte) error {
				var rec types.IssueRecord
				if err := json.Unmarshal(raw, &rec); err != nil {
					return xerrors.Errorf("corrupt record in %s/%s: %v", key, pkgName, err)
				}
				e.Records = append(e.Records, rec)
				return nil
			})
		})
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("%w: failed to read partition %s: %v", ErrIO, key, err)
	}
	return entry, nil
}

// Put atomically replaces the partition for key with a fresh snapshot built
// from ds. Either the old entry or the new one survives a crash, never a mix:
// the delete and the rebuild share one bolt transaction.
func (s *Store) Put(key types.CacheKey, ds types.Dataset) error {
	for _, rec := range ds.Records {
		if rec.Key() != key {
			return xerrors.Errorf("record %s for %s does not belong to partition %s",
				rec.SourceID, rec.Key(), key)
		}
	}

	fetchedAt := s.clock.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		name := []byte(key.Name())
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return xerrors.Errorf("failed to drop stale partition: %v", err)
			}
		}
		root, err := tx.CreateBucket(name)
		if err != nil {
			return xerrors.Errorf("failed to create partition bucket: %v", err)
		}

		issues, err := root.CreateBucket([]byte(issuesBucket))
		if err != nil {
			return err
		}
		for i, rec := range ds.Records {
			pkgBkt, err := issues.CreateBucketIfNotExists([]byte(rec.PkgName))
			if err != nil {
				return err
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return xerrors.Errorf("failed to marshal record %s: %v", rec.SourceID, err)
			}
			// The key carries the insertion index so stored order survives
			// bolt's key sorting; source IDs alone may repeat per package.
			if err = pkgBkt.Put(recordKey(i, rec.SourceID), raw); err != nil {
				return err
			}
		}

		pkgs, err := root.CreateBucket([]byte(packagesBucket))
		if err != nil {
			return err
		}
		for _, name := range ds.Packages {
			if err = pkgs.Put([]byte(name), []byte{}); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(types.Metadata{
			FetchedAt:    fetchedAt,
			RecordCount:  len(ds.Records),
			PackageCount: len(ds.Packages),
		})
		if err != nil {
			return err
		}
		return root.Put([]byte(metadataKey), meta)
	})
	if err != nil {
		return xerrors.Errorf("%w: failed to write partition %s: %v", ErrIO, key, err)
	}

	s.logger.Debug("Stored partition",
		log.String("partition", key.Name()),
		log.Int("records", len(ds.Records)),
		log.Int("packages", len(ds.Packages)))
	return nil
}

// IsStale consults the staleness policy for a loaded entry. The default
// policy never reports stale.
func (s *Store) IsStale(entry *Entry) bool {
	return s.policy.Stale(entry.Metadata, s.clock.Now())
}

func recordKey(index int, sourceID string) []byte {
	// Fixed-width index prefix keeps bolt's byte ordering equal to the
	// insertion order.
	return []byte(fmt.Sprintf("%08d/%s", index, sourceID))
}
