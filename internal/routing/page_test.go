package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminePageType(t *testing.T) {
	cases := []struct {
		segs map[string]string
		want PageType
	}{
		{map[string]string{"location": "warsaw"}, PageLocation},
		{map[string]string{"location": "warsaw", "category": "parks", "slug": "central"}, PageListing},
		{map[string]string{"location": "warsaw", "category": "parks"}, PageCategoryLocation},
		{map[string]string{"category": "parks"}, PageCategory},
		{map[string]string{"slug": "central"}, PageUnknown},
		{map[string]string{}, PageUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeterminePageType(tc.segs, locPattern), "%v", tc.segs)
	}

	assert.Equal(t, PageListing,
		DeterminePageType(map[string]string{"category": "parks", "slug": "x"}, DefaultPattern))
	assert.Equal(t, PageUnknown, DeterminePageType(map[string]string{"category": "x"}, "{a}/{a}"))
}

func TestFilters_Match(t *testing.T) {
	f := BuildFiltersFromSegments(map[string]string{"location": "warsaw", "category": "dog-parks"}, locPattern)
	assert.Empty(t, f.Slug)
	assert.Len(t, f.Fields, 2)

	assert.True(t, f.Match(map[string]any{"location": "Warsaw", "category": "Dog Parks", "slug": "a"}))
	assert.False(t, f.Match(map[string]any{"location": "Kraków", "category": "Dog Parks", "slug": "a"}))

	byCity := f.Using(SegmentConfig{"location": {Source: SourceListingField, Field: "address.city"}})
	assert.True(t, byCity.Match(map[string]any{
		"address":  map[string]any{"city": "Warsaw"},
		"category": "Dog Parks",
	}))

	assert.True(t, BuildFiltersFromSegments(nil, locPattern).Empty())
}

func TestGenerateBreadcrumbs(t *testing.T) {
	crumbs := GenerateBreadcrumbs(
		map[string]string{"location": "warsaw", "category": "dog-parks", "slug": "central"},
		locPattern, "Central Bark")

	assert.Equal(t, []Breadcrumb{
		{Label: "Home", URL: "/"},
		{Label: "Warsaw", URL: "/warsaw"},
		{Label: "Dog Parks", URL: "/warsaw/dog-parks"},
		{Label: "Central Bark"},
	}, crumbs)

	assert.Equal(t, []Breadcrumb{{Label: "Home", URL: "/"}}, GenerateBreadcrumbs(nil, locPattern, ""))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Dog Parks":           "dog-parks",
		"  Crème Brûlée!! ":   "creme-brulee",
		"Łódź":                "lodz",
		"Straße":              "strasse",
		"Salt & Pepper":       "salt-and-pepper",
		"---":                 "",
		"日本":                  "",
		"Ice-Cream   Parlour": "ice-cream-parlour",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.Equal(t, "item", MakeSlug("!!!"))
}

func TestBuildPath(t *testing.T) {
	assert.Equal(t, "/", BuildPath())
	assert.Equal(t, "/a/b", BuildPath("a", "/b/"))
	assert.Equal(t, "/a/b/c", BuildPath("/a//b", "", "c"))
}
