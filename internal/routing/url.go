// internal/routing/url.go
//
// URL generation and parsing against a directory's pattern.
//
// Workflow
// --------
//   GenerateURL        listing data  → “dog-parks/central-bark”
//   ParseURLToSegments request path → {"category": "dog-parks", "slug": …}
//
// Segment sources
// ---------------
//   • listing_field – dotted path into the listing (“address.city”).
//   • category      – category slug, falling back to the category name.
//   • static        – fixed Value.
//   • computed      – Compute func, or a built-in registered by name.
//
// Values are slugified unless the segment sets Raw.  The slug segment is
// never derived; it is the listing's own slug, verbatim.

package routing

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"go.uber.org/zap"
)

// Segment sources.
const (
	SourceListingField = "listing_field"
	SourceCategory     = "category"
	SourceStatic       = "static"
	SourceComputed     = "computed"
)

// ErrMissingSlug is returned when listing data carries no slug.
var ErrMissingSlug = errors.New("listing has no slug")

// ComputeFunc derives a segment value from listing data.
type ComputeFunc func(data map[string]any) string

// Segment configures how one placeholder is resolved.
type Segment struct {
	Source  string      `json:"source"`
	Field   string      `json:"field,omitempty"`
	Value   string      `json:"value,omitempty"`
	Func    string      `json:"func,omitempty"`
	Raw     bool        `json:"raw,omitempty"`
	Compute ComputeFunc `json:"-"`
}

// SegmentConfig maps placeholder names to their Segment.  Placeholders
// without an entry read the listing field of the same name, except
// “category”, which uses the category source.
type SegmentConfig map[string]Segment

func (c SegmentConfig) segment(name string) Segment {
	if s, ok := c[name]; ok {
		if s.Source == "" {
			s.Source = SourceListingField
		}
		return s
	}
	if name == SourceCategory {
		return Segment{Source: SourceCategory}
	}
	return Segment{Source: SourceListingField, Field: name}
}

/*──────────────────────────── computed registry ───────────────────────────*/

var (
	computedMu sync.RWMutex
	computed   = map[string]ComputeFunc{
		"initial": func(d map[string]any) string {
			t := strings.TrimSpace(stringify(d["title"]))
			if t == "" {
				return ""
			}
			r := []rune(Slugify(t))
			if len(r) == 0 {
				return ""
			}
			return string(r[0])
		},
		"city": func(d map[string]any) string {
			if c := stringify(lookup(d, "location.city")); c != "" {
				return c
			}
			// "12 Main St, Springfield, IL" → "Springfield"
			parts := strings.Split(stringify(d["address"]), ",")
			if len(parts) >= 2 {
				return strings.TrimSpace(parts[len(parts)-2])
			}
			return ""
		},
	}
)

// RegisterComputed adds or replaces a named computed segment.
func RegisterComputed(name string, fn ComputeFunc) {
	computedMu.Lock()
	computed[name] = fn
	computedMu.Unlock()
}

func computedFunc(name string) (ComputeFunc, bool) {
	computedMu.RLock()
	defer computedMu.RUnlock()
	fn, ok := computed[name]
	return fn, ok
}

/*──────────────────────────────── generate ────────────────────────────────*/

// GenerateURL renders pattern for one listing.  The result has no leading
// or trailing “/”; empty segments are dropped.
func GenerateURL(pattern string, cfg SegmentConfig, data map[string]any) (string, error) {
	parts, err := splitPattern(pattern)
	if err != nil {
		return "", err
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.name == "" {
			out = append(out, p.literal)
			continue
		}
		if p.name == SlugSegment {
			slug := stringify(data[SlugSegment])
			if slug == "" {
				return "", ErrMissingSlug
			}
			out = append(out, slug)
			continue
		}
		if v := ResolveSegment(cfg.segment(p.name), data); v != "" {
			out = append(out, v)
		}
	}
	return strings.Trim(BuildPath(out...), "/"), nil
}

// ResolveSegment returns the (slugified unless Raw) value of one segment.
func ResolveSegment(seg Segment, data map[string]any) string {
	var v string
	switch seg.Source {
	case SourceListingField:
		v = stringify(lookup(data, seg.Field))
	case SourceCategory:
		v = categoryValue(seg.Field, data)
	case SourceStatic:
		v = seg.Value
	case SourceComputed:
		fn := seg.Compute
		if fn == nil {
			var ok bool
			if fn, ok = computedFunc(seg.Func); !ok {
				zap.S().Debugw("unknown computed segment", "func", seg.Func)
				return ""
			}
		}
		v = fn(data)
	default:
		zap.S().Debugw("unknown segment source", "source", seg.Source)
		return ""
	}

	if seg.Raw {
		return strings.Trim(strings.TrimSpace(v), "/")
	}
	return Slugify(v)
}

// categoryValue tries the configured field, then "category", then
// "category_name".  A category object contributes its slug or name.
func categoryValue(field string, data map[string]any) string {
	for _, f := range []string{field, "category", "category_name"} {
		if f == "" {
			continue
		}
		switch c := lookup(data, f).(type) {
		case map[string]any:
			if s := stringify(c["slug"]); s != "" {
				return s
			}
			if s := stringify(c["name"]); s != "" {
				return s
			}
		default:
			if s := stringify(c); s != "" {
				return s
			}
		}
	}
	return ""
}

// lookup resolves a dotted path (“address.city”, “images.0”) with ojg.
func lookup(data map[string]any, path string) any {
	if path == "" {
		return nil
	}
	if v, ok := data[path]; ok {
		return v
	}
	x := jp.R()
	for _, key := range strings.Split(path, ".") {
		if i, err := strconv.Atoi(key); err == nil {
			x = x.N(i)
		} else {
			x = x.C(key)
		}
	}
	return x.First(data)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

/*────────────────────────────────── parse ─────────────────────────────────*/

// ParseURLToSegments aligns path parts with pattern placeholders.  A path
// shorter than the pattern binds its leading segments only (category and
// location index pages).  A longer path, or a literal part that does not
// match, returns ErrPathMismatch.
func ParseURLToSegments(path, pattern string) (map[string]string, error) {
	parts, err := splitPattern(pattern)
	if err != nil {
		return nil, err
	}

	var pathParts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}
	if len(pathParts) > len(parts) {
		return nil, fmt.Errorf("%w: %d parts for %d segments in %q",
			ErrPathMismatch, len(pathParts), len(parts), pattern)
	}

	segments := make(map[string]string, len(pathParts))
	for i, raw := range pathParts {
		val, err := url.PathUnescape(raw)
		if err != nil {
			val = raw
		}
		p := parts[i]
		if p.name == "" {
			if val != p.literal {
				return nil, fmt.Errorf("%w: %q where %q expected", ErrPathMismatch, val, p.literal)
			}
			continue
		}
		segments[p.name] = val
	}
	return segments, nil
}
