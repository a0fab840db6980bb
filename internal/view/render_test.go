package view

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/dirsite/internal/directory"
)

func testDirectory(theme string, layouts ...string) *directory.Directory {
	d := directory.NewDirectory(directory.DirectoryRecord{
		DirectoryID:      "dogparks",
		Name:             "Dog Parks",
		Theme:            theme,
		AvailableLayouts: directory.Encoded[[]string]{Value: layouts, Valid: true},
	})
	return &d
}

func testListings() []directory.Listing {
	return []directory.Listing{
		{
			Slug:     "central-bark",
			Title:    "Central Bark",
			Category: directory.Category{Name: "Parks", Slug: "parks"},
			Images:   []string{"https://img.example.com/cb.jpg"},
			Rating:   4.4,
			Location: directory.Location{Lat: 50.06, Lng: 19.94},
			Tags:     []string{"shade"},
		},
		{Slug: "dog-beach", Title: "Dog Beach", Category: directory.Category{Name: "Beaches", Slug: "beaches"}},
	}
}

func TestRender_BuiltinCard(t *testing.T) {
	r := New("")
	out, err := r.RenderToString(testDirectory("", "Card", "Map"), "", testListings())
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, `class="layout layout-card"`)
	assert.Contains(t, html, `href="/dogparks/parks/central-bark/"`)
	assert.Contains(t, html, `href="/dogparks/beaches/dog-beach/"`)
	assert.Contains(t, html, "★★★★☆")
	assert.Contains(t, html, "https://img.example.com/cb.jpg")
	assert.Equal(t, 1, strings.Count(html, "<img"))
}

func TestRender_MapAndListAreCaseInsensitive(t *testing.T) {
	r := New("")
	d := testDirectory("", "Card", "List", "Map")

	out, err := r.RenderToString(d, "map", testListings())
	require.NoError(t, err)
	assert.Contains(t, string(out), `data-lat="50.06"`)
	assert.NotContains(t, string(out), "Dog Beach")

	out, err = r.RenderToString(d, "LIST", testListings())
	require.NoError(t, err)
	assert.Contains(t, string(out), `<span class="tag">shade</span>`)
}

func TestRender_LayoutErrors(t *testing.T) {
	r := New("")

	_, err := r.RenderToString(testDirectory("", "Card"), "Map", nil)
	assert.ErrorIs(t, err, ErrLayoutNotAvailable)

	_, err = r.RenderToString(testDirectory("", "Card", "Grid"), "Grid", nil)
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestRender_EmptyListings(t *testing.T) {
	out, err := New("").RenderToString(testDirectory("", "Card"), "Card", nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "No listings yet.")
}

func TestRender_ThemeOverrideAndCache(t *testing.T) {
	themes := t.TempDir()
	layouts := filepath.Join(themes, "forest", "layouts")
	require.NoError(t, os.MkdirAll(filepath.Join(layouts, "partials"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "card.html"),
		[]byte(`<div class="forest">{{range .Listings}}{{template "row" .}}{{end}}</div>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "partials", "row.html"),
		[]byte(`{{define "row"}}<b>{{.Title}}</b>{{end}}`), 0o644))

	r := New(themes)
	out, err := r.RenderToString(testDirectory("forest", "Card", "Map"), "Card", testListings())
	require.NoError(t, err)
	assert.Equal(t, `<div class="forest"><b>Central Bark</b><b>Dog Beach</b></div>`, string(out))

	// Map still comes from the builtin set.
	out, err = r.RenderToString(testDirectory("forest", "Card", "Map"), "Map", testListings())
	require.NoError(t, err)
	assert.Contains(t, string(out), "layout-map")
	assert.Equal(t, 1, r.sets.Len())

	// Another theme without overrides gets the builtin card.
	out, err = r.RenderToString(testDirectory("candy", "Card"), "Card", testListings())
	require.NoError(t, err)
	assert.Contains(t, string(out), "layout-card")
	assert.Equal(t, 2, r.sets.Len())

	r.Purge()
	assert.Equal(t, 0, r.sets.Len())
}

func TestStars(t *testing.T) {
	assert.Equal(t, "☆☆☆☆☆", stars(-1))
	assert.Equal(t, "★★★☆☆", stars(2.5))
	assert.Equal(t, "★★★★★", stars(9))
}
