// internal/directory/transform.go
//
// Record → domain transforms.
//
// Workflow
// --------
//   NewDirectory    trims ids, derives layouts and category slugs, and
//                   falls back to the default URL pattern when the
//                   configured one is invalid.
//   NewListing      resolves the category reference against the owning
//                   directory, clamps the rating into 0–5, and renders
//                   the markdown body.
//   NewLandingPage  renders the markdown body.
//
// Notes
// -----
//   - A category reference that matches nothing is kept (name and derived
//     slug) and logged as a warning; listings are never dropped for it.

package directory

import (
	"bytes"
	"html/template"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/routing"
)

var (
	validate = validator.New()
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// NewDirectory normalises a directories-table row.
func NewDirectory(r DirectoryRecord) Directory {
	d := Directory{
		ID:          strings.TrimSpace(r.DirectoryID),
		Name:        strings.TrimSpace(r.Name),
		Domain:      strings.ToLower(strings.TrimSpace(r.Domain)),
		Theme:       strings.TrimSpace(r.Theme),
		ColorScheme: strings.TrimSpace(r.ColorScheme),
		MetaTags:    r.MetaTags.Get(),
		SocialLinks: r.SocialLinks.Get(),
		Deployment:  r.Deployment.Get(),
		URLSegments: r.URLSegments.Get(),
		Description: r.Description,
		UpdatedAt:   r.UpdatedAt.Time(),
	}

	for _, l := range r.AvailableLayouts.Get() {
		if l = strings.TrimSpace(l); l != "" {
			d.AvailableLayouts = append(d.AvailableLayouts, l)
		}
	}
	if len(d.AvailableLayouts) == 0 {
		d.AvailableLayouts = []string{DefaultLayout}
	}
	d.DefaultLayout = strings.TrimSpace(r.DefaultLayout)
	if d.DefaultLayout == "" {
		d.DefaultLayout = d.AvailableLayouts[0]
	}

	for _, c := range r.Categories.Get() {
		c.Name = strings.TrimSpace(c.Name)
		if c.Slug == "" {
			c.Slug = routing.MakeSlug(c.Name)
		}
		if c.ID == "" {
			c.ID = c.Slug
		}
		d.Categories = append(d.Categories, c)
	}

	d.URLPattern = strings.TrimSpace(r.URLPattern)
	if d.URLPattern == "" {
		d.URLPattern = routing.DefaultPattern
	} else if err := routing.ValidatePattern(d.URLPattern); err != nil {
		zap.S().Warnw("directory url pattern rejected, using default",
			"directory", d.ID, "pattern", d.URLPattern, "err", err)
		d.URLPattern = routing.DefaultPattern
	}
	return d
}

// NewListing normalises a listings-table row.  dir may be nil, in which
// case the category reference is kept unresolved.
func NewListing(r ListingRecord, dir *Directory) Listing {
	l := Listing{
		DirectoryID:  strings.TrimSpace(r.DirectoryID),
		Slug:         strings.TrimSpace(r.Slug),
		Title:        strings.TrimSpace(r.Title),
		Description:  r.Description,
		Content:      r.Content,
		Featured:     bool(r.Featured),
		Images:       nonNil(r.Images.Get()),
		Address:      strings.TrimSpace(r.Address),
		Location:     r.Location.Get(),
		Phone:        strings.TrimSpace(r.Phone),
		Email:        strings.TrimSpace(r.Email),
		Website:      strings.TrimSpace(r.Website),
		Rating:       r.Rating.Get(),
		Tags:         nonNil(r.Tags.Get()),
		OpeningHours: r.OpeningHours.Get(),
		CustomFields: r.CustomFields.Get(),
		UpdatedAt:    r.UpdatedAt.Time(),
	}
	if l.Slug == "" {
		l.Slug = routing.MakeSlug(l.Title)
	}
	if l.OpeningHours == nil {
		l.OpeningHours = []OpeningHours{}
	}

	l.Category = resolveCategory(strings.TrimSpace(r.Category), dir, l.Slug)

	if err := validate.Struct(&l); err != nil {
		clamped := math.Max(0, math.Min(5, l.Rating))
		zap.S().Warnw("listing rating out of range, clamped",
			"directory", l.DirectoryID, "slug", l.Slug, "rating", l.Rating, "clamped", clamped)
		l.Rating = clamped
	}

	l.html = Markdown(l.Content)
	return l
}

// NewLandingPage normalises a landing-pages-table row.
func NewLandingPage(r LandingPageRecord) LandingPage {
	p := LandingPage{
		DirectoryID: strings.TrimSpace(r.DirectoryID),
		Slug:        strings.TrimSpace(r.Slug),
		Title:       strings.TrimSpace(r.Title),
		Content:     r.Content,
		Order:       int(r.Order.Get()),
		UpdatedAt:   r.UpdatedAt.Time(),
	}
	if p.Slug == "" {
		p.Slug = routing.MakeSlug(p.Title)
	}
	p.html = Markdown(p.Content)
	return p
}

func resolveCategory(ref string, dir *Directory, slug string) Category {
	if ref == "" {
		return Category{}
	}
	if dir != nil {
		if c, ok := dir.Category(ref); ok {
			return c
		}
		zap.S().Warnw("listing references unknown category",
			"directory", dir.ID, "slug", slug, "category", ref)
	}
	s := routing.MakeSlug(ref)
	return Category{ID: ref, Name: ref, Slug: s}
}

// Markdown renders a body to HTML.  Raw HTML in the source is omitted.
func Markdown(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		zap.S().Debugw("markdown render failed", "err", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
