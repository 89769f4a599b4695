package types

import (
	"fmt"
	"time"
)

// CacheKey identifies one cached dataset snapshot.
type CacheKey struct {
	Release      string `json:"release"`
	Architecture string `json:"architecture"`
}

// Name returns the partition name used as the storage bucket,
// e.g. "buster/amd64".
func (k CacheKey) Name() string {
	return k.Release + "/" + k.Architecture
}

func (k CacheKey) String() string {
	return k.Name()
}

// IssueRecord is one known security issue recorded for a binary package in
// one (release, architecture) partition. Records are immutable once fetched;
// a later fetch replaces the whole partition.
type IssueRecord struct {
	PkgName      string `json:"package_name"`
	Release      string `json:"release"`
	Architecture string `json:"architecture"`

	// SourceID identifies the tracked vulnerability, e.g. "CVE-2021-3712"
	// or "TEMP-0000000-1C7510".
	SourceID    string `json:"source_id"`
	Description string `json:"description,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Bug         int    `json:"bug,omitempty"`

	// FixedVersion is the earliest version resolving the issue, empty when
	// no fix is known.
	FixedVersion string `json:"fixed_version,omitempty"`
	Status       Status `json:"status"`

	// IgnoreReason carries the tracker's no-dsa marker when the issue is
	// explicitly not going to be fixed via an advisory.
	IgnoreReason string `json:"ignore_reason,omitempty"`
}

// Key returns the partition the record belongs to.
func (r IssueRecord) Key() CacheKey {
	return CacheKey{Release: r.Release, Architecture: r.Architecture}
}

// Package is the subject of an audit query, as extracted from a .deb file.
type Package struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
}

func (p Package) String() string {
	return fmt.Sprintf("%s %s %s", p.Name, p.Architecture, p.Version)
}

// AuditResult classifies every issue recorded for one queried package into
// three disjoint buckets. Present + Ignored + Fixed always cover all records
// for (release, architecture, package_name).
type AuditResult struct {
	Package      string `json:"package_name"`
	Architecture string `json:"architecture"`
	Version      string `json:"version"`
	Release      string `json:"release"`

	// Known reports whether the release ships the package at all. An
	// unknown package yields empty buckets, not an error.
	Known bool `json:"known"`

	Present []IssueRecord `json:"present"`
	Ignored []IssueRecord `json:"ignored"`
	Fixed   []IssueRecord `json:"fixed"`
}

// Clean reports whether no issue currently affects the queried version.
func (r AuditResult) Clean() bool {
	return len(r.Present) == 0
}

// Total returns the number of classified records.
func (r AuditResult) Total() int {
	return len(r.Present) + len(r.Ignored) + len(r.Fixed)
}

// Metadata describes one cache partition snapshot.
type Metadata struct {
	FetchedAt    time.Time `json:"fetched_at"`
	RecordCount  int       `json:"record_count"`
	PackageCount int       `json:"package_count"`
}
