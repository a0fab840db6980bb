// internal/view/render.go
//
// Layout renderer behind /api/render-layout.
//
// Lookup precedence (last parse wins):
//  1. embedded templates/<layout>.html        (Card, List, Map)
//  2. <themes_dir>/<theme>/layouts/**/*.html  (per-theme overrides and
//     partials)
//
// All files of a theme are parsed as one set so overrides may pull in
// partials via {{ template "row" . }}.  Parsed sets are kept in an LRU keyed
// by theme name; Purge drops them after a theme edit.
//
// Notes
// -----
//   • Layout names are case-insensitive ("Card" runs card.html).
//   • A directory may only render layouts it lists in AvailableLayouts.

package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/cache"
	"github.com/yanizio/dirsite/internal/directory"
)

//go:embed templates/*.html
var builtin embed.FS

var (
	// ErrLayoutNotAvailable means the directory does not offer the layout.
	ErrLayoutNotAvailable = errors.New("layout not available for directory")
	// ErrUnknownLayout means no template exists for the layout.
	ErrUnknownLayout = errors.New("unknown layout")
)

// Page is the data every layout template receives.
type Page struct {
	Directory *directory.Directory
	Layout    string
	Listings  []directory.Listing
}

// Renderer renders listing layouts.  Safe for concurrent use.
type Renderer struct {
	themesDir string
	sets      *cache.LRU[string, *template.Template]
}

// New returns a Renderer reading theme overrides from themesDir.  An empty
// themesDir disables overrides.
func New(themesDir string) *Renderer {
	return &Renderer{themesDir: themesDir, sets: cache.NewLRU[string, *template.Template](64)}
}

// Render writes the layout for d and its listings to w.  An empty layout
// selects the directory default.
func (r *Renderer) Render(w io.Writer, d *directory.Directory, layout string, listings []directory.Listing) error {
	if layout == "" {
		layout = d.DefaultLayout
	}
	if !d.HasLayout(layout) {
		return fmt.Errorf("%w: %q", ErrLayoutNotAvailable, layout)
	}
	t, err := r.load(d.Theme)
	if err != nil {
		return err
	}
	name := strings.ToLower(layout) + ".html"
	if t.Lookup(name) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}
	return t.ExecuteTemplate(w, name, Page{Directory: d, Layout: layout, Listings: listings})
}

// RenderToString is Render into a buffer.
func (r *Renderer) RenderToString(d *directory.Directory, layout string, listings []directory.Listing) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, d, layout, listings); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Purge drops every parsed set.
func (r *Renderer) Purge() { r.sets.Purge() }

/*────────────────────────────── internal: load ─────────────────────────────*/

func (r *Renderer) load(theme string) (*template.Template, error) {
	if t, ok := r.sets.Get(theme); ok {
		return t, nil
	}

	t, err := template.New("layouts").Funcs(funcMap()).ParseFS(builtin, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse builtin layouts: %w", err)
	}

	if dir := r.themeDir(theme); dir != "" {
		files, err := collectHTML(dir)
		if err != nil {
			return nil, fmt.Errorf("theme %s: %w", theme, err)
		}
		if len(files) > 0 {
			if _, err := t.ParseFiles(files...); err != nil {
				return nil, fmt.Errorf("parse theme %s: %w", theme, err)
			}
			zap.S().Debugw("theme layouts loaded", "theme", theme, "files", len(files))
		}
	}

	r.sets.Add(theme, t)
	return t, nil
}

func (r *Renderer) themeDir(theme string) string {
	if r.themesDir == "" || theme == "" || strings.ContainsAny(theme, `/\`) || strings.HasPrefix(theme, ".") {
		return ""
	}
	dir := filepath.Join(r.themesDir, theme, "layouts")
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}
