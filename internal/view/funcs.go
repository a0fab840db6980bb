// funcs.go holds the template func map and a small walker, since
// template.ParseGlob has no "**" support.
package view

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"math"
	"path/filepath"
	"strings"

	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/routing"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"dict":       dict,
		"first":      first,
		"humanize":   routing.Humanize,
		"listingURL": listingURL,
		"markers":    markers,
		"stars":      stars,
	}
}

// listingURL returns the root-relative URL of l, or "#" when the pattern
// cannot be filled.
func listingURL(d *directory.Directory, l directory.Listing) string {
	p, err := d.URLFor(&l)
	if err != nil {
		return "#"
	}
	return routing.BuildPath(d.ID, p) + "/"
}

// markers encodes map pins for the Map layout's script.
func markers(ls []directory.Listing) string {
	type pin struct {
		Slug  string  `json:"slug"`
		Title string  `json:"title"`
		Lat   float64 `json:"lat"`
		Lng   float64 `json:"lng"`
	}
	pins := []pin{}
	for _, l := range ls {
		if l.Location.Lat == 0 && l.Location.Lng == 0 {
			continue
		}
		pins = append(pins, pin{l.Slug, l.Title, l.Location.Lat, l.Location.Lng})
	}
	b, _ := json.Marshal(pins)
	return string(b)
}

// stars renders a 0–5 rating as "★★★☆☆", rounding to the nearest star.
func stars(r float64) string {
	n := int(math.Round(math.Max(0, math.Min(5, r))))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}

// collectHTML walks root and returns every *.html path, sorted by the walk.
func collectHTML(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
