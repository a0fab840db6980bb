// internal/routing/page.go
//
// Page classification, listing filters, and breadcrumbs derived from
// parsed URL segments.  Everything here is a pure function of its inputs.

package routing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PageType classifies a parsed request path.
type PageType string

const (
	PageListing          PageType = "listing"
	PageLocation         PageType = "location"
	PageCategoryLocation PageType = "category-location"
	PageCategory         PageType = "category"
	PageUnknown          PageType = "unknown"
)

const locationSegment = "location"

// DeterminePageType applies presence rules:
//
//	every pattern segment present (slug included) → listing
//	location, no category, no slug                → location
//	location and category, no slug                → category-location
//	category, no location, no slug                → category
//	anything else                                 → unknown
func DeterminePageType(segments map[string]string, pattern string) PageType {
	names, err := ParsePattern(pattern)
	if err != nil {
		return PageUnknown
	}

	has := func(n string) bool { return segments[n] != "" }

	all := has(SlugSegment)
	for _, n := range names {
		if !has(n) {
			all = false
			break
		}
	}

	switch {
	case all:
		return PageListing
	case has(SlugSegment):
		return PageUnknown
	case has(locationSegment) && !has(SourceCategory):
		return PageLocation
	case has(locationSegment) && has(SourceCategory):
		return PageCategoryLocation
	case has(SourceCategory):
		return PageCategory
	default:
		return PageUnknown
	}
}

/*──────────────────────────────── filters ─────────────────────────────────*/

// Filters selects listings that belong under a parsed path.
type Filters struct {
	Slug   string
	Fields map[string]string // segment name → slugified value

	config SegmentConfig
}

// BuildFiltersFromSegments keeps every pattern segment present in segments.
func BuildFiltersFromSegments(segments map[string]string, pattern string) Filters {
	f := Filters{Fields: map[string]string{}}
	names, err := ParsePattern(pattern)
	if err != nil {
		return f
	}
	for _, n := range names {
		v := segments[n]
		if v == "" {
			continue
		}
		if n == SlugSegment {
			f.Slug = v
			continue
		}
		f.Fields[n] = v
	}
	return f
}

// Using returns a copy of f that resolves fields through cfg, the same
// configuration GenerateURL used to build the path.
func (f Filters) Using(cfg SegmentConfig) Filters {
	f.config = cfg
	return f
}

// Empty reports whether f selects everything.
func (f Filters) Empty() bool { return f.Slug == "" && len(f.Fields) == 0 }

// Match reports whether a listing satisfies every filter.
func (f Filters) Match(data map[string]any) bool {
	if f.Slug != "" && stringify(data[SlugSegment]) != f.Slug {
		return false
	}
	for name, want := range f.Fields {
		seg := f.config.segment(name)
		got := ResolveSegment(seg, data)
		if !seg.Raw {
			want = Slugify(want)
		}
		if got != want {
			return false
		}
	}
	return true
}

/*────────────────────────────── breadcrumbs ───────────────────────────────*/

// Breadcrumb is one trail element.  The current page has an empty URL.
type Breadcrumb struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// GenerateBreadcrumbs returns Home, then one crumb per non-slug segment with
// a cumulative URL, then currentLabel (when non-empty) without a link.
func GenerateBreadcrumbs(segments map[string]string, pattern, currentLabel string) []Breadcrumb {
	crumbs := []Breadcrumb{{Label: "Home", URL: "/"}}

	names, err := ParsePattern(pattern)
	if err == nil {
		var trail []string
		for _, n := range names {
			v := segments[n]
			if n == SlugSegment || v == "" {
				continue
			}
			trail = append(trail, v)
			crumbs = append(crumbs, Breadcrumb{Label: Humanize(v), URL: BuildPath(trail...)})
		}
	}

	if currentLabel != "" {
		crumbs = append(crumbs, Breadcrumb{Label: currentLabel})
	}
	return crumbs
}

// Humanize turns “dog-parks” into “Dog Parks”.
func Humanize(slug string) string {
	s := strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' }), " ")
	return cases.Title(language.English).String(s)
}
