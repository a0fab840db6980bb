// internal/build/artifacts.go
//
// Files written next to the generator output.
//
// Per directory (dist/<id>/)
//   - sitemap.xml        home, category pages, landing pages, listings
//
// Per run (dist/)
//   - sitemap-index.xml  one entry per successfully built directory
//   - robots.txt
//   - _redirects         trailing-slash and custom-domain rules
//   - domain-map.json    consumed by the edge handler at request time
//   - build-report.html  human-readable summary of the run
//   - index.html         directory selector, only when the generator did
//                        not produce one

package build

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/routing"
	"github.com/yanizio/dirsite/internal/tenant"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
	Priority string `xml:"priority,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []sitemapURL `xml:"sitemap"`
}

// SiteURL returns a directory's public base URL without trailing slash.
func SiteURL(base string, d directory.Directory) string {
	if d.Domain != "" {
		return "https://" + d.Domain
	}
	return strings.TrimRight(base, "/") + "/" + d.ID
}

func lastMod(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// WriteSitemap writes dist/<id>/sitemap.xml.
func WriteSitemap(outDir, baseURL string, d directory.Directory,
	listings []directory.Listing, pages []directory.LandingPage) error {

	site := SiteURL(baseURL, d)
	set := urlSet{Xmlns: sitemapNS}
	set.URLs = append(set.URLs, sitemapURL{Loc: site + "/", LastMod: lastMod(d.UpdatedAt), Priority: "1.0"})

	if names, err := routing.ParsePattern(d.URLPattern); err == nil && len(names) > 1 && names[0] == routing.SourceCategory {
		for _, c := range d.Categories {
			set.URLs = append(set.URLs, sitemapURL{Loc: site + routing.BuildPath(c.Slug) + "/", Priority: "0.8"})
		}
	}
	for _, p := range pages {
		set.URLs = append(set.URLs, sitemapURL{Loc: site + routing.BuildPath(p.Slug) + "/",
			LastMod: lastMod(p.UpdatedAt), Priority: "0.6"})
	}
	for i := range listings {
		path, err := d.URLFor(&listings[i])
		if err != nil {
			continue
		}
		prio := "0.7"
		if listings[i].Featured {
			prio = "0.9"
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: site + routing.BuildPath(path) + "/",
			LastMod: lastMod(listings[i].UpdatedAt), Priority: prio})
	}
	return writeXML(filepath.Join(outDir, d.ID, "sitemap.xml"), set)
}

// WriteSitemapIndex writes dist/sitemap-index.xml for the given directories.
func WriteSitemapIndex(outDir, baseURL string, dirs []directory.Directory) error {
	idx := sitemapIndex{Xmlns: sitemapNS}
	now := lastMod(time.Now())
	for _, d := range dirs {
		idx.Sitemaps = append(idx.Sitemaps, sitemapURL{Loc: SiteURL(baseURL, d) + "/sitemap.xml", LastMod: now})
	}
	return writeXML(filepath.Join(outDir, "sitemap-index.xml"), idx)
}

func writeXML(path string, v any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return writeFile(path, buf.Bytes())
}

// WriteRobots writes dist/robots.txt pointing at the sitemap index.
func WriteRobots(outDir, baseURL string) error {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if baseURL != "" {
		fmt.Fprintf(&b, "\nSitemap: %s/sitemap-index.xml\n", strings.TrimRight(baseURL, "/"))
	}
	return writeFile(filepath.Join(outDir, "robots.txt"), []byte(b.String()))
}

// WriteRedirects writes dist/_redirects.
func WriteRedirects(outDir string, dirs []directory.Directory) error {
	sorted := append([]directory.Directory(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&b, "/%s /%s/ 301\n", d.ID, d.ID)
	}
	for _, d := range sorted {
		if d.Domain != "" {
			fmt.Fprintf(&b, "https://%s/* /%s/:splat 200\n", d.Domain, d.ID)
		}
	}
	return writeFile(filepath.Join(outDir, "_redirects"), []byte(b.String()))
}

// WriteDomainMap writes dist/domain-map.json.
func WriteDomainMap(outDir string, dirs []directory.Directory) error {
	return tenant.FromDirectories(dirs).Save(filepath.Join(outDir, tenant.DomainMapFile))
}

var reportTmpl = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Build report {{.RunID}}</title>
<style>body{font-family:sans-serif;margin:2rem}td,th{padding:.3rem .8rem;text-align:left}
.success{color:#1a7f37}.failed{color:#cf222e}</style></head>
<body>
<h1>Build report</h1>
<p>Run {{.RunID}} ({{.Kind}}) started {{.Started.Format "2006-01-02 15:04:05 MST"}}, took {{.Duration}}.</p>
<p>{{.Succeeded}} built, {{.Failed}} failed.</p>
<table>
<tr><th>Directory</th><th>Status</th><th>Domain</th><th>Duration</th><th>Error</th></tr>
{{range .Results}}<tr class="{{.Status}}"><td>{{.DirectoryID}}</td><td>{{.Status}}</td><td>{{.Domain}}</td><td>{{.Duration}}</td><td>{{if .Err}}{{.Err}}{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// WriteReport writes dist/build-report.html.
func WriteReport(outDir string, s *Summary) error {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, s); err != nil {
		return err
	}
	return writeFile(filepath.Join(outDir, "build-report.html"), buf.Bytes())
}

var selectorTmpl = template.Must(template.New("selector").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Directories</title></head>
<body>
<h1>Directories</h1>
<ul>
{{range .}}<li><a href="{{if .Domain}}https://{{.Domain}}/{{else}}/{{.ID}}/{{end}}">{{if .Name}}{{.Name}}{{else}}{{.ID}}{{end}}</a></li>
{{end}}</ul>
</body>
</html>
`))

// WriteSelector writes dist/index.html unless it already exists.  It
// reports whether a file was written.
func WriteSelector(outDir string, dirs []directory.Directory) (bool, error) {
	path := filepath.Join(outDir, "index.html")
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	var buf bytes.Buffer
	if err := selectorTmpl.Execute(&buf, dirs); err != nil {
		return false, err
	}
	return true, writeFile(path, buf.Bytes())
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
