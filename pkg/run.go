package pkg

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/audit"
	"github.com/rotty/deb-audit/pkg/cache"
	"github.com/rotty/deb-audit/pkg/config"
	"github.com/rotty/deb-audit/pkg/debfile"
	"github.com/rotty/deb-audit/pkg/fetch"
	"github.com/rotty/deb-audit/pkg/fetch/udd"
	"github.com/rotty/deb-audit/pkg/log"
	"github.com/rotty/deb-audit/pkg/policy"
	"github.com/rotty/deb-audit/pkg/report"
	"github.com/rotty/deb-audit/pkg/types"
)

// Exit codes. A processing error outranks a finding, a finding outranks a
// clean run.
const (
	exitClean   = 0
	exitFinding = 1
	exitError   = 2
)

type runOptions struct {
	release    string
	policyPath string
	showAll    bool
	jsonOut    bool
	args       []string
}

func run(c *cli.Context) error {
	log.Init(os.Stderr, c.Bool("verbose"))

	if c.NArg() == 0 {
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}
		return cli.NewExitError("", exitError)
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return cli.NewExitError(err.Error(), exitError)
	}
	cacheDir := cfg.CacheDir
	if dir := c.String("cache-dir"); dir != "" {
		cacheDir = dir
	}

	store, err := cache.NewStore(cacheDir)
	if err != nil {
		return cli.NewExitError(err.Error(), exitError)
	}
	defer store.Close()

	var fetcher fetch.Fetcher = udd.NewFetcher(cfg.UDD)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fetcher = &spinnerFetcher{next: fetcher}
	}

	opts := runOptions{
		release:    cfg.Release,
		policyPath: c.String("policy"),
		showAll:    c.Bool("show-all"),
		jsonOut:    c.Bool("json"),
		args:       c.Args(),
	}
	if release := c.String("release"); release != "" {
		opts.release = release
	}

	code, err := runAudit(context.Background(), opts, store, fetcher, os.Stdout)
	if err != nil {
		return cli.NewExitError(err.Error(), exitError)
	}
	if code != exitClean {
		return cli.NewExitError("", code)
	}
	return nil
}

// runAudit audits every named .deb file and returns the process exit code.
// A failure on one file is reported and does not stop the remaining files.
func runAudit(ctx context.Context, opts runOptions, store *cache.Store, fetcher fetch.Fetcher, output io.Writer) (int, error) {
	pol := policy.Default()
	if opts.policyPath != "" {
		var err error
		if pol, err = policy.Load(opts.policyPath); err != nil {
			return exitError, err
		}
	}
	engine := audit.New(store, fetcher, audit.WithPolicy(pol))

	format := report.FormatText
	if opts.jsonOut {
		format = report.FormatJSON
	}
	writer, err := report.NewWriter(report.Option{Output: output, Format: format, ShowAll: opts.showAll})
	if err != nil {
		return exitError, err
	}

	code := exitClean
	for _, filePath := range opts.args {
		pkg, err := debfile.Read(filePath)
		if err != nil {
			log.Errorf("Skipping %s: %s", filePath, err)
			code = exitError
			continue
		}

		key := types.CacheKey{Release: opts.release, Architecture: pkg.Architecture}
		result, err := engine.Audit(ctx, key, pkg.Name, pkg.Version)
		if err != nil {
			log.Errorf("Failed to audit %s: %s", pkg.Name, err)
			code = exitError
			continue
		}

		if err = writer.Write(result); err != nil {
			return exitError, xerrors.Errorf("failed to write report: %w", err)
		}
		if code == exitClean && (!result.Known || !result.Clean()) {
			code = exitFinding
		}
	}

	if err = writer.Close(); err != nil {
		return exitError, xerrors.Errorf("failed to write report: %w", err)
	}
	return code, nil
}

// spinnerFetcher shows progress on the terminal while the wrapped fetcher
// talks to the remote database.
type spinnerFetcher struct {
	next fetch.Fetcher
}

func (f *spinnerFetcher) Fetch(ctx context.Context, key types.CacheKey) (types.Dataset, error) {
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = fmt.Sprintf(" Fetching issue data for %s", key.Name())
	sp.Start()
	defer sp.Stop()
	return f.next.Fetch(ctx, key)
}
