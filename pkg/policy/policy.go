// Package policy maps upstream issue statuses to audit buckets. The exact
// status vocabulary of the tracker is not fully pinned down, so the mapping
// is a table that can be overridden from a YAML file rather than a set of
// hard-coded assumptions.
package policy

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/rotty/deb-audit/pkg/debver"
	"github.com/rotty/deb-audit/pkg/types"
)

// Classification is the bucket a record lands in for one queried version.
type Classification int

const (
	// Present: the issue affects the queried version.
	Present Classification = iota
	// Ignored: the tracker explicitly marked the issue not applicable.
	Ignored
	// Fixed: the issue is resolved at or before the queried version.
	Fixed
)

func (c Classification) String() string {
	return [...]string{"present", "ignored", "fixed"}[c]
}

type Policy struct {
	ignoredStatuses map[types.Status]struct{}
	nodsaIgnored    bool
}

// Default treats records with status "ignored", and records carrying a
// no-dsa marker, as ignored.
func Default() Policy {
	return Policy{
		ignoredStatuses: map[types.Status]struct{}{
			types.StatusIgnored: {},
		},
		nodsaIgnored: true,
	}
}

// file is the YAML override shape.
type file struct {
	IgnoredStatuses []string `yaml:"ignored_statuses"`
	NoDSAIgnored    *bool    `yaml:"nodsa_ignored"`
}

// Load reads a policy table from a YAML file, starting from the defaults.
func Load(path string) (Policy, error) {
	p := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return p, xerrors.Errorf("failed to read policy file %s: %w", path, err)
	}

	var f file
	if err = yaml.UnmarshalStrict(b, &f); err != nil {
		return p, xerrors.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if f.IgnoredStatuses != nil {
		p.ignoredStatuses = map[types.Status]struct{}{}
		for _, s := range f.IgnoredStatuses {
			p.ignoredStatuses[types.NewStatus(s)] = struct{}{}
		}
	}
	if f.NoDSAIgnored != nil {
		p.nodsaIgnored = *f.NoDSAIgnored
	}
	return p, nil
}

// Ignores reports whether the record is explicitly excluded for its release.
func (p Policy) Ignores(rec types.IssueRecord) bool {
	if p.nodsaIgnored && rec.IgnoreReason != "" {
		return true
	}
	_, ok := p.ignoredStatuses[rec.Status]
	return ok
}

// Classify places one record relative to the queried version. Ignored wins
// over fixed so the three buckets stay disjoint.
func (p Policy) Classify(rec types.IssueRecord, version debver.Version) (Classification, error) {
	if p.Ignores(rec) {
		return Ignored, nil
	}
	if rec.FixedVersion != "" {
		fixed, err := debver.NewVersion(rec.FixedVersion)
		if err != nil {
			return Present, xerrors.Errorf("record %s has a bad fixed version: %w", rec.SourceID, err)
		}
		if version.Compare(fixed) >= 0 {
			return Fixed, nil
		}
	}
	return Present, nil
}
