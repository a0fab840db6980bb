package directory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDirectory(t *testing.T, raw string) Directory {
	t.Helper()
	var rec DirectoryRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return NewDirectory(rec)
}

func TestNewDirectory_LayoutFallback(t *testing.T) {
	d := decodeDirectory(t, `{
		"Directory_ID": "dogparks",
		"Name": "Dog Parks",
		"Available_Layouts": "Card,Map",
		"Default_Layout": null
	}`)

	assert.Equal(t, "dogparks", d.ID)
	assert.Equal(t, []string{"Card", "Map"}, d.AvailableLayouts)
	assert.Equal(t, "Card", d.DefaultLayout)
	assert.Equal(t, "{category}/{slug}", d.URLPattern)
}

func TestNewDirectory_EmptyLayouts(t *testing.T) {
	d := decodeDirectory(t, `{"Directory_ID": "desserts", "Available_Layouts": ""}`)
	assert.Equal(t, []string{"Card"}, d.AvailableLayouts)
	assert.Equal(t, "Card", d.DefaultLayout)
}

func TestNewDirectory_EncodedColumns(t *testing.T) {
	d := decodeDirectory(t, `{
		"Directory_ID": "desserts",
		"Available_Layouts": "[\"List\",\"Map\"]",
		"Default_Layout": "Map",
		"Categories": "[{\"id\":\"1\",\"name\":\"Ice Cream\"},\"Crème Brûlée\"]",
		"Social_Links": "{\"instagram\":\"https://instagram.com/desserts\"}",
		"Meta_Tags": "not json at all",
		"Deployment": {"method": "ftp", "options": {"root": "/public_html"}},
		"URL_Pattern": "{location}/{category}/{slug}",
		"URL_Segments": "{\"location\":{\"source\":\"listing_field\",\"field\":\"location.city\"}}",
		"UpdatedAt": "2024-05-01 10:00:00+00:00"
	}`)

	assert.Equal(t, []string{"List", "Map"}, d.AvailableLayouts)
	assert.Equal(t, "Map", d.DefaultLayout)
	require.Len(t, d.Categories, 2)
	assert.Equal(t, Category{ID: "1", Name: "Ice Cream", Slug: "ice-cream"}, d.Categories[0])
	assert.Equal(t, "creme-brulee", d.Categories[1].Slug)
	assert.Equal(t, "https://instagram.com/desserts", d.SocialLinks["instagram"])
	assert.Nil(t, d.MetaTags)
	assert.Equal(t, "ftp", d.Deployment.Method)
	assert.Equal(t, "/public_html", d.Deployment.Option("root", "/"))
	assert.Equal(t, "location.city", d.URLSegments["location"].Field)
	assert.Equal(t, 2024, d.UpdatedAt.Year())
}

func TestNewDirectory_InvalidPatternFallsBack(t *testing.T) {
	d := decodeDirectory(t, `{"Directory_ID": "x", "URL_Pattern": "{category}/{category}"}`)
	assert.Equal(t, "{category}/{slug}", d.URLPattern)
}

func TestNewListing(t *testing.T) {
	dir := decodeDirectory(t, `{
		"Directory_ID": "dogparks",
		"Categories": "[{\"id\":\"c1\",\"name\":\"Dog Parks\"}]"
	}`)

	var rec ListingRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"Directory_ID": "dogparks",
		"Slug": "central-bark",
		"Title": "Central Bark",
		"Content": "# Hello\n\nFenced *and* shaded.",
		"Category": "c1",
		"Featured": 1,
		"Images": "[\"a.jpg\",\"b.jpg\"]",
		"Tags": "shade, water",
		"Rating": "7",
		"Opening_Hours": "[{\"day\":\"Mon\",\"open\":\"06:00\",\"close\":\"22:00\"}]",
		"Custom_Fields": "{broken"
	}`), &rec))

	l := NewListing(rec, &dir)
	assert.Equal(t, "Dog Parks", l.Category.Name)
	assert.Equal(t, "dog-parks", l.Category.Slug)
	assert.True(t, l.Featured)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, l.Images)
	assert.Equal(t, []string{"shade", "water"}, l.Tags)
	assert.Equal(t, 5.0, l.Rating)
	require.Len(t, l.OpeningHours, 1)
	assert.Equal(t, "Mon", l.OpeningHours[0].Day)
	assert.Nil(t, l.CustomFields)
	assert.Contains(t, string(l.Render()), "<h1>Hello</h1>")
	assert.Contains(t, string(l.Render()), "<em>and</em>")

	path, err := dir.URLFor(&l)
	require.NoError(t, err)
	assert.Equal(t, "dog-parks/central-bark", path)

	out, err := json.Marshal(l)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(out, &wire))
	assert.True(t, strings.HasPrefix(wire["html"].(string), "<h1>Hello"))
	assert.Equal(t, "central-bark", wire["slug"])
}

func TestNewListing_DanglingCategoryKept(t *testing.T) {
	dir := decodeDirectory(t, `{"Directory_ID": "dogparks"}`)
	l := NewListing(ListingRecord{Slug: "x", Category: "Beaches"}, &dir)
	assert.Equal(t, Category{ID: "Beaches", Name: "Beaches", Slug: "beaches"}, l.Category)
	assert.Equal(t, []string{}, l.Tags)
}

func TestNewLandingPage(t *testing.T) {
	var rec LandingPageRecord
	require.NoError(t, json.Unmarshal([]byte(`{"Title":"About Us","Content":"Hi","Order":"2"}`), &rec))
	p := NewLandingPage(rec)
	assert.Equal(t, "about-us", p.Slug)
	assert.Equal(t, 2, p.Order)
	assert.Equal(t, "<p>Hi</p>\n", string(p.Render()))
}

func TestEncoded_NeverFails(t *testing.T) {
	var e Encoded[map[string]int]
	for _, in := range []string{`null`, `""`, `"{bad"`, `[1,2]`, `42`} {
		require.NoError(t, json.Unmarshal([]byte(in), &e), in)
		assert.False(t, e.Valid, in)
		assert.Nil(t, e.Get(), in)
	}

	require.NoError(t, json.Unmarshal([]byte(`"{\"a\":1}"`), &e))
	assert.True(t, e.Valid)
	assert.Equal(t, map[string]int{"a": 1}, e.Get())
}
