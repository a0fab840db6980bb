// internal/routing/pattern.go
//
// URL pattern parsing.
//
// A directory's URL pattern is a “/”-separated template whose parts are
// either a single placeholder (“{category}”) or a literal (“listings”).
// The default is “{category}/{slug}”; a location-first directory might use
// “{location}/{category}/{slug}”.
//
// Rules
// -----
// • Placeholder names are unique within a pattern.
// • A pattern must contain {slug}; the slug is what makes a URL unique.
// • A part may not mix a placeholder with literal text (“{a}-x”), because
//   ParseURLToSegments could not split it back apart.

package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultPattern applies when a directory does not configure one.
const DefaultPattern = "{category}/{slug}"

// SlugSegment names the segment that always carries the listing slug.
const SlugSegment = "slug"

var (
	// ErrInvalidPattern wraps every pattern rejection.
	ErrInvalidPattern = errors.New("invalid url pattern")

	// ErrPathMismatch reports a path that cannot be aligned with a pattern.
	ErrPathMismatch = errors.New("path does not match url pattern")
)

var placeholderRe = regexp.MustCompile(`\{([^{}/]*)\}`)

// part is one “/”-separated element of a pattern.
type part struct {
	name    string // placeholder name; empty for literals
	literal string
}

// ParsePattern returns the placeholder names in order of appearance.
func ParsePattern(pattern string) ([]string, error) {
	parts, err := splitPattern(pattern)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.name != "" {
			names = append(names, p.name)
		}
	}
	return names, nil
}

// ValidatePattern rejects duplicates, mixed parts, and a missing {slug}.
func ValidatePattern(pattern string) error {
	names, err := ParsePattern(pattern)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == SlugSegment {
			return nil
		}
	}
	return fmt.Errorf("%w: %q has no {%s} segment", ErrInvalidPattern, pattern, SlugSegment)
}

func splitPattern(pattern string) ([]part, error) {
	pattern = strings.Trim(strings.TrimSpace(pattern), "/")
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	seen := make(map[string]bool)
	var parts []part
	for _, raw := range strings.Split(pattern, "/") {
		if raw == "" {
			continue
		}
		m := placeholderRe.FindStringSubmatchIndex(raw)
		switch {
		case m == nil:
			if strings.ContainsAny(raw, "{}") {
				return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidPattern, raw)
			}
			parts = append(parts, part{literal: raw})
		case m[0] != 0 || m[1] != len(raw):
			return nil, fmt.Errorf("%w: %q mixes a placeholder with text", ErrInvalidPattern, raw)
		default:
			name := strings.TrimSpace(raw[m[2]:m[3]])
			if name == "" {
				return nil, fmt.Errorf("%w: empty placeholder", ErrInvalidPattern)
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: duplicate segment {%s}", ErrInvalidPattern, name)
			}
			seen[name] = true
			parts = append(parts, part{name: name})
		}
	}
	return parts, nil
}
