// Package semver provides the Version type and Range expression
// grammar zepo uses to resolve npm-registry-protocol dependency specs.
// Version wraps github.com/Masterminds/semver/v3, which already
// implements correct SemVer 2.0 parsing and comparison; Range is a
// hand-written lexer/parser/AST/evaluator for the caret/tilde/hyphen/
// union/wildcard range grammar the registry protocol expects, ported
// from the original's semver/{Semver,Range}.{hpp,cpp}.
package semver

import (
	mmsemver "github.com/Masterminds/semver/v3"

	"github.com/zepo-dev/zepo/internal/errtypes"
)

// Version is a parsed semantic version.
type Version struct {
	inner *mmsemver.Version
	raw   string
}

// ParseVersion parses s as a semantic version, tolerating a leading
// "v"/"V" the way the original's Semver.cpp constructor does.
func ParseVersion(s string) (Version, error) {
	trimmed := s
	if len(trimmed) > 0 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}
	v, err := mmsemver.NewVersion(trimmed)
	if err != nil {
		return Version{}, &errtypes.VersionParseError{Input: s, Err: err}
	}
	return Version{inner: v, raw: s}, nil
}

// MustParseVersion is ParseVersion but panics on error, for table-driven
// test fixtures and compile-time constants.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.inner == nil {
		return ""
	}
	return v.inner.String()
}

// Major, Minor, Patch expose the numeric components.
func (v Version) Major() uint64 { return v.inner.Major() }
func (v Version) Minor() uint64 { return v.inner.Minor() }
func (v Version) Patch() uint64 { return v.inner.Patch() }

// Compare returns -1, 0 or 1 comparing v to other, per SemVer precedence
// rules (prerelease tags sort before release).
func (v Version) Compare(other Version) int { return v.inner.Compare(other.inner) }

func (v Version) LessThan(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) LessOrEqual(other Version) bool { return v.Compare(other) <= 0 }
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }
func (v Version) GreaterOrEqual(other Version) bool {
	return v.Compare(other) >= 0
}
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// SatisfiesCaret implements "^" range semantics: matches any version
// that doesn't change the left-most nonzero component, mirroring the
// original's semver_satisfies_caret behavior (^1.2.3 := >=1.2.3 <2.0.0,
// ^0.2.3 := >=0.2.3 <0.3.0, ^0.0.3 := >=0.0.3 <0.0.4).
func (v Version) SatisfiesCaret(target Version) bool {
	if !v.GreaterOrEqual(target) {
		return false
	}
	if target.Major() != 0 {
		return v.Major() == target.Major()
	}
	if target.Minor() != 0 {
		return v.Major() == 0 && v.Minor() == target.Minor()
	}
	return v.Major() == 0 && v.Minor() == 0 && v.Patch() == target.Patch()
}

// SatisfiesTilde implements "~" range semantics: v must be >= target
// and share its major and minor version, so only patch-level changes
// are allowed (~1.2.3 := >=1.2.3 <1.3.0, ~1.2 := >=1.2.0 <1.3.0).
func (v Version) SatisfiesTilde(target Version) bool {
	if !v.GreaterOrEqual(target) {
		return false
	}
	return v.Major() == target.Major() && v.Minor() == target.Minor()
}
