// Package debver implements Debian package version ordering as defined in
// Debian Policy §5.6.12 (the dpkg --compare-versions algorithm).
package debver

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrMalformedVersion is wrapped by all parse failures.
var ErrMalformedVersion = xerrors.New("malformed Debian version")

const (
	upstreamChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.+-:~"
	revisionChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.+~"
)

// Version is a parsed Debian version: [epoch:]upstream[-revision].
type Version struct {
	Epoch    int
	Upstream string
	Revision string
}

// NewVersion parses a Debian version string. A missing epoch defaults to 0
// and a missing revision to the empty string, which sorts below any
// non-empty revision.
func NewVersion(s string) (Version, error) {
	var v Version

	if strings.TrimSpace(s) == "" {
		return v, xerrors.Errorf("empty version string: %w", ErrMalformedVersion)
	}
	if strings.ContainsAny(s, " \t") {
		return v, xerrors.Errorf("version %q has embedded whitespace: %w", s, ErrMalformedVersion)
	}

	rest := s
	if i := strings.Index(rest, ":"); i >= 0 {
		epoch, err := strconv.Atoi(rest[:i])
		if err != nil || epoch < 0 {
			return v, xerrors.Errorf("version %q has a non-numeric epoch: %w", s, ErrMalformedVersion)
		}
		v.Epoch = epoch
		rest = rest[i+1:]
		if rest == "" {
			return v, xerrors.Errorf("version %q has nothing after the epoch: %w", s, ErrMalformedVersion)
		}
	}

	// The revision starts after the last hyphen; earlier hyphens belong to
	// the upstream version.
	if i := strings.LastIndex(rest, "-"); i >= 0 {
		v.Upstream, v.Revision = rest[:i], rest[i+1:]
	} else {
		v.Upstream = rest
	}

	if v.Upstream == "" {
		return v, xerrors.Errorf("version %q has an empty upstream version: %w", s, ErrMalformedVersion)
	}
	if !containsOnly(v.Upstream, upstreamChars) {
		return v, xerrors.Errorf("upstream version %q has invalid characters: %w", v.Upstream, ErrMalformedVersion)
	}
	if !containsOnly(v.Revision, revisionChars) {
		return v, xerrors.Errorf("revision %q has invalid characters: %w", v.Revision, ErrMalformedVersion)
	}
	return v, nil
}

// Compare returns a negative number when v sorts before other, zero when
// they are equal and a positive number otherwise. The ordering is total:
// epoch first, then upstream version, then revision.
func (v Version) Compare(other Version) int {
	if v.Epoch != other.Epoch {
		return v.Epoch - other.Epoch
	}
	if res := verrevcmp(v.Upstream, other.Upstream); res != 0 {
		return res
	}
	return verrevcmp(v.Revision, other.Revision)
}

func (v Version) LessThan(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) Equal(other Version) bool       { return v.Compare(other) == 0 }
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }

func (v Version) String() string {
	var sb strings.Builder
	if v.Epoch > 0 {
		sb.WriteString(strconv.Itoa(v.Epoch))
		sb.WriteByte(':')
	}
	sb.WriteString(v.Upstream)
	if v.Revision != "" {
		sb.WriteByte('-')
		sb.WriteString(v.Revision)
	}
	return sb.String()
}

// Compare parses both version strings and compares them.
func Compare(a, b string) (int, error) {
	va, err := NewVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := NewVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// verrevcmp compares one version component by alternating runs of non-digit
// and digit characters. Non-digit runs compare character-wise where letters
// sort before all other characters and '~' sorts below everything, including
// the end of the string. Digit runs compare numerically.
func verrevcmp(a, b string) int {
	for a != "" || b != "" {
		var firstDiff int
		for (a != "" && !isDigit(a[0])) || (b != "" && !isDigit(b[0])) {
			ac, bc := 0, 0
			if a != "" {
				ac = charOrder(a[0])
				a = a[1:]
			}
			if b != "" {
				bc = charOrder(b[0])
				b = b[1:]
			}
			if ac != bc {
				return ac - bc
			}
		}
		for a != "" && a[0] == '0' {
			a = a[1:]
		}
		for b != "" && b[0] == '0' {
			b = b[1:]
		}
		for a != "" && b != "" && isDigit(a[0]) && isDigit(b[0]) {
			if firstDiff == 0 {
				firstDiff = int(a[0]) - int(b[0])
			}
			a, b = a[1:], b[1:]
		}
		if a != "" && isDigit(a[0]) {
			return 1
		}
		if b != "" && isDigit(b[0]) {
			return -1
		}
		if firstDiff != 0 {
			return firstDiff
		}
	}
	return 0
}

// charOrder maps a byte to its sort weight: '~' below end-of-string, digits
// neutral, letters before all remaining characters.
func charOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func containsOnly(s, allowed string) bool {
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(allowed, rune(s[i])) {
			return false
		}
	}
	return true
}
