// Package udd fetches security issue datasets from the public read-only
// mirror of the Ultimate Debian Database. UDD tracks issues per source
// package; the fetcher joins them against the release's binary package list
// so the returned records are keyed by binary package name.
package udd

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/fetch"
	"github.com/rotty/deb-audit/pkg/log"
	"github.com/rotty/deb-audit/pkg/types"
)

const (
	sourceMapQuery = `SELECT package, source
  FROM all_packages
 WHERE distribution = 'debian'
   AND release = $1
   AND architecture = $2`

	issuesQuery = `SELECT i.source, i.issue, i.description, i.scope, i.bug,
       r.fixed_version, r.status, r.nodsa
  FROM security_issues AS i
 INNER JOIN security_issues_releases AS r
    ON i.source = r.source AND i.issue = r.issue
 WHERE r.release = $1`
)

// Config holds the connection parameters for the UDD mirror. The public
// mirror accepts the well-known udd-mirror credentials.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

func DefaultConfig() Config {
	return Config{
		Host:     "udd-mirror.debian.net",
		Port:     5432,
		User:     "udd-mirror",
		Password: "udd-mirror",
		DBName:   "udd",
		SSLMode:  "require",
	}
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type Fetcher struct {
	cfg    Config
	logger *log.Logger
}

func NewFetcher(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		logger: log.WithPrefix("udd"),
	}
}

// Fetch retrieves the complete dataset for one (release, architecture). The
// initial connection is retried with capped exponential backoff; query
// failures are not retried, the caller simply re-runs the audit.
func (f *Fetcher) Fetch(ctx context.Context, key types.CacheKey) (types.Dataset, error) {
	db, err := f.connect(ctx)
	if err != nil {
		return types.Dataset{}, err
	}
	defer db.Close()

	sources, packages, err := f.fetchSourceMap(ctx, db, key)
	if err != nil {
		return types.Dataset{}, err
	}

	issues, err := f.fetchIssues(ctx, db, key.Release)
	if err != nil {
		return types.Dataset{}, err
	}

	ds := types.Dataset{Packages: packages}
	for _, pkgName := range packages {
		for _, src := range sources[pkgName] {
			for _, row := range issues[src] {
				ds.Records = append(ds.Records, types.IssueRecord{
					PkgName:      pkgName,
					Release:      key.Release,
					Architecture: key.Architecture,
					SourceID:     row.issue,
					Description:  row.description,
					Scope:        row.scope,
					Bug:          row.bug,
					FixedVersion: row.fixedVersion,
					Status:       types.NewStatus(row.status),
					IgnoreReason: row.nodsa,
				})
			}
		}
	}

	f.logger.Debug("Fetched dataset",
		log.String("partition", key.Name()),
		log.Int("records", len(ds.Records)),
		log.Int("packages", len(ds.Packages)))
	return ds, nil
}

func (f *Fetcher) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", f.cfg.dsn())
	if err != nil {
		return nil, xerrors.Errorf("%w: failed to configure connection: %v", fetch.ErrFetch, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx), func(err error, _ time.Duration) {
		f.logger.Warn("Retrying UDD connection", log.Err(err))
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("%w: failed to reach %s: %v", fetch.ErrFetch, f.cfg.Host, err)
	}
	return db, nil
}

// fetchSourceMap maps every binary package of the partition to its source
// package(s) and returns the sorted binary package list.
func (f *Fetcher) fetchSourceMap(ctx context.Context, db *sql.DB, key types.CacheKey) (map[string][]string, []string, error) {
	rows, err := db.QueryContext(ctx, sourceMapQuery, key.Release, key.Architecture)
	if err != nil {
		return nil, nil, xerrors.Errorf("%w: source map query: %v", fetch.ErrFetch, err)
	}
	defer rows.Close()

	sources := map[string][]string{}
	for rows.Next() {
		var pkgName, src string
		if err = rows.Scan(&pkgName, &src); err != nil {
			return nil, nil, xerrors.Errorf("%w: source map scan: %v", fetch.ErrFetch, err)
		}
		if !contains(sources[pkgName], src) {
			sources[pkgName] = append(sources[pkgName], src)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, nil, xerrors.Errorf("%w: source map rows: %v", fetch.ErrFetch, err)
	}

	packages := make([]string, 0, len(sources))
	for pkgName, srcs := range sources {
		sort.Strings(srcs)
		packages = append(packages, pkgName)
	}
	sort.Strings(packages)
	return sources, packages, nil
}

type issueRow struct {
	issue        string
	description  string
	scope        string
	bug          int
	fixedVersion string
	status       string
	nodsa        string
}

// fetchIssues returns the release's issues grouped by source package, in
// stable order.
func (f *Fetcher) fetchIssues(ctx context.Context, db *sql.DB, release string) (map[string][]issueRow, error) {
	rows, err := db.QueryContext(ctx, issuesQuery, release)
	if err != nil {
		return nil, xerrors.Errorf("%w: issues query: %v", fetch.ErrFetch, err)
	}
	defer rows.Close()

	issues := map[string][]issueRow{}
	for rows.Next() {
		var (
			src, issue                  string
			description, scope          sql.NullString
			bug                         sql.NullInt64
			fixedVersion, status, nodsa sql.NullString
		)
		if err = rows.Scan(&src, &issue, &description, &scope, &bug, &fixedVersion, &status, &nodsa); err != nil {
			return nil, xerrors.Errorf("%w: issues scan: %v", fetch.ErrFetch, err)
		}
		issues[src] = append(issues[src], issueRow{
			issue:        issue,
			description:  description.String,
			scope:        scope.String,
			bug:          int(bug.Int64),
			fixedVersion: fixedVersion.String,
			status:       status.String,
			nodsa:        nodsa.String,
		})
	}
	if err = rows.Err(); err != nil {
		return nil, xerrors.Errorf("%w: issues rows: %v", fetch.ErrFetch, err)
	}

	for _, rs := range issues {
		sort.Slice(rs, func(i, j int) bool { return rs[i].issue < rs[j].issue })
	}
	return issues, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
