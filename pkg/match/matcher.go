// Package match filters sample names by glob patterns.
//
// Operators rarely want to check a full batch at once: a resubmission round
// usually targets one sample group ("QCD_HT*") or everything but a handful.
// A Matcher carries include and exclude patterns evaluated against bare
// sample names.
package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates glob patterns against sample names.
//
//   - Include patterns: a sample must match at least one
//   - Exclude patterns: a sample must not match any
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns a sample must match (at least one).
	// Empty means match everything.
	Includes []string

	// Excludes are glob patterns a sample must not match (any). Optional.
	Excludes []string
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a Matcher from the given configuration.
//
// Returns an error if any pattern is invalid (cannot be compiled).
func New(cfg Config) (*Matcher, error) {
	includes := cfg.Includes
	if len(includes) == 0 {
		includes = []string{"**"}
	}

	for _, raw := range includes {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}
	for _, raw := range cfg.Excludes {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}

	return &Matcher{
		includes: append([]string{}, includes...),
		excludes: append([]string{}, cfg.Excludes...),
	}, nil
}

// Match returns true if the sample name passes the include/exclude patterns.
func (m *Matcher) Match(sample string) bool {
	matched := false
	for _, inc := range m.includes {
		if matchPattern(inc, sample) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, sample) {
			return false
		}
	}
	return true
}

// IncludePatterns returns the raw include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string{}, m.includes...)
}

// ExcludePatterns returns the raw exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string{}, m.excludes...)
}

func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		// Patterns were validated at construction time.
		return false
	}
	return matched
}
