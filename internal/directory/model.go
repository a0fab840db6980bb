// internal/directory/model.go
//
// Domain model for directory tenants and their content.
//
// Context
// -------
// A *directory* is one tenant website (dog parks, desserts, …).  Records
// arrive from NocoDB as the *Record types in record.go; NewDirectory,
// NewListing, and NewLandingPage turn them into the types below, which the
// build, API, and layout renderer consume.  Nothing downstream ever sees a
// string-encoded JSON column.

package directory

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/yanizio/dirsite/internal/routing"
)

// DefaultLayout is used when a directory lists no layouts.
const DefaultLayout = "Card"

// Directory is one tenant.
type Directory struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Domain           string                `json:"domain,omitempty"`
	Theme            string                `json:"theme,omitempty"`
	ColorScheme      string                `json:"colorScheme,omitempty"`
	AvailableLayouts []string              `json:"availableLayouts"`
	DefaultLayout    string                `json:"defaultLayout"`
	Categories       []Category            `json:"categories"`
	MetaTags         map[string]string     `json:"metaTags,omitempty"`
	SocialLinks      map[string]string     `json:"socialLinks,omitempty"`
	Deployment       Deployment            `json:"deployment"`
	URLPattern       string                `json:"urlPattern"`
	URLSegments      routing.SegmentConfig `json:"urlSegments,omitempty"`
	Description      string                `json:"description,omitempty"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// Category is nested in a Directory.  Slug is derived from Name when the
// backend leaves it blank.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare name.
func (c *Category) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*c = Category{Name: name}
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Category(p)
	return nil
}

// Deployment selects a deploy driver and carries per-directory overrides
// (remote root, bucket prefix, branch, …).
type Deployment struct {
	Method  string            `json:"method"`
	Options map[string]string `json:"options,omitempty"`
}

// Option returns a per-directory override or def.
func (d Deployment) Option(key, def string) string {
	if v := d.Options[key]; v != "" {
		return v
	}
	return def
}

// HasLayout reports whether name is one of the directory's layouts,
// ignoring case.
func (d *Directory) HasLayout(name string) bool {
	for _, l := range d.AvailableLayouts {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// Category looks a category up by id, slug, or name.
func (d *Directory) Category(ref string) (Category, bool) {
	if ref == "" {
		return Category{}, false
	}
	for _, c := range d.Categories {
		if c.Matches(ref) {
			return c, true
		}
	}
	return Category{}, false
}

// Matches reports whether ref names c by id, slug, name, or slugified name.
func (c Category) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return c.ID == ref || c.Slug == ref || c.Name == ref ||
		(c.Slug != "" && c.Slug == routing.Slugify(ref))
}

// URLFor renders a listing's path (no leading slash) from the directory's
// URL pattern.
func (d *Directory) URLFor(l *Listing) (string, error) {
	return routing.GenerateURL(d.URLPattern, d.URLSegments, l.Data())
}

// Renderable is implemented by content whose body is markdown.
type Renderable interface {
	Render() template.HTML
}

// Location is a listing's geodata.
type Location struct {
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	City    string  `json:"city,omitempty"`
	Region  string  `json:"region,omitempty"`
	Country string  `json:"country,omitempty"`
}

// OpeningHours is one weekday entry.
type OpeningHours struct {
	Day    string `json:"day"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// Listing is one entry of a directory, keyed by DirectoryID + Slug.
type Listing struct {
	DirectoryID  string         `json:"directoryId"`
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Content      string         `json:"content,omitempty"`
	Category     Category       `json:"category"`
	Featured     bool           `json:"featured"`
	Images       []string       `json:"images"`
	Address      string         `json:"address,omitempty"`
	Location     Location       `json:"location"`
	Phone        string         `json:"phone,omitempty"`
	Email        string         `json:"email,omitempty"`
	Website      string         `json:"website,omitempty"`
	Rating       float64        `json:"rating" validate:"gte=0,lte=5"`
	Tags         []string       `json:"tags"`
	OpeningHours []OpeningHours `json:"openingHours"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	html template.HTML
}

// Render returns the markdown body as HTML, rendered at fetch time.
func (l *Listing) Render() template.HTML { return l.html }

// MarshalJSON adds the rendered body as "html".
func (l Listing) MarshalJSON() ([]byte, error) {
	type plain Listing
	return json.Marshal(struct {
		plain
		HTML template.HTML `json:"html,omitempty"`
	}{plain(l), l.html})
}

// Data flattens the listing into the map shape URL segments and filters
// resolve against.
func (l *Listing) Data() map[string]any {
	tags := make([]any, len(l.Tags))
	for i, t := range l.Tags {
		tags[i] = t
	}
	return map[string]any{
		"slug":          l.Slug,
		"title":         l.Title,
		"description":   l.Description,
		"category":      l.Category.Name,
		"category_slug": l.Category.Slug,
		"category_id":   l.Category.ID,
		"featured":      l.Featured,
		"address":       l.Address,
		"location": map[string]any{
			"city":    l.Location.City,
			"region":  l.Location.Region,
			"country": l.Location.Country,
			"lat":     l.Location.Lat,
			"lng":     l.Location.Lng,
		},
		"phone":   l.Phone,
		"email":   l.Email,
		"website": l.Website,
		"rating":  l.Rating,
		"tags":    tags,
		"custom":  l.CustomFields,
	}
}

// LandingPage is a free-form page of a directory (about, guides, …).
type LandingPage struct {
	DirectoryID string    `json:"directoryId"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Order       int       `json:"order"`
	UpdatedAt   time.Time `json:"updatedAt"`

	html template.HTML
}

// Render returns the markdown body as HTML.
func (p *LandingPage) Render() template.HTML { return p.html }

// MarshalJSON adds the rendered body as "html".
func (p LandingPage) MarshalJSON() ([]byte, error) {
	type plain LandingPage
	return json.Marshal(struct {
		plain
		HTML template.HTML `json:"html,omitempty"`
	}{plain(p), p.html})
}
