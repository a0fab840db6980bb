package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/tenant"
)

type fakeSource struct {
	dirs    []directory.Directory
	err     error
	listing map[string][]directory.Listing
}

func (f *fakeSource) ListDirectories(context.Context) ([]directory.Directory, error) {
	return f.dirs, f.err
}

func (f *fakeSource) ListListings(_ context.Context, id string) ([]directory.Listing, error) {
	return f.listing[id], nil
}

func (f *fakeSource) ListLandingPages(context.Context, string) ([]directory.LandingPage, error) {
	return nil, nil
}

// fakeGen writes <OUTPUT_DIR>/<id>/index.html (the nested-output quirk) and
// a leaked copy of every other directory; ids in fail return an error.
type fakeGen struct {
	mu    sync.Mutex
	jobs  []Job
	fail  map[string]bool
	leaks []string
}

func (g *fakeGen) Generate(_ context.Context, job Job) error {
	g.mu.Lock()
	g.jobs = append(g.jobs, job)
	g.mu.Unlock()

	if g.fail[job.DirectoryID] {
		return errors.New("astro exited 1")
	}
	nested := filepath.Join(job.Env["OUTPUT_DIR"], job.Env["CURRENT_DIRECTORY"], "index.html")
	if err := os.MkdirAll(filepath.Dir(nested), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(nested, []byte("<h1>"+job.DirectoryID+"</h1>"), 0o644); err != nil {
		return err
	}
	for _, other := range g.leaks {
		if other != job.DirectoryID {
			_ = os.MkdirAll(filepath.Join(job.OutputDir, other), 0o755)
		}
	}
	return nil
}

func dir(id, domain, theme string) directory.Directory {
	d := directory.NewDirectory(directory.DirectoryRecord{DirectoryID: id, Name: strings.ToUpper(id)})
	d.Domain, d.Theme = domain, theme
	return d
}

func newTestOrchestrator(t *testing.T, src Source, gen Generator) (*Orchestrator, Options) {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		OutputDir:          filepath.Join(root, "dist"),
		ContentDir:         filepath.Join(root, "content"),
		PublicDir:          filepath.Join(root, "public"),
		SiteURL:            "https://sites.example.com",
		DefaultDirectories: []string{"dogparks", "desserts"},
		Dependencies: DependencyMap{
			{Path: "src/components/shared/", All: true},
			{Path: "src/styles/themes/forest.css", Themes: []string{"forest"}},
		},
	}
	write(t, filepath.Join(opts.PublicDir, "favicon.ico"), "icon")
	return New(src, gen, opts), opts
}

func TestBuildAll_RepairsAndWritesArtifacts(t *testing.T) {
	src := &fakeSource{
		dirs: []directory.Directory{
			dir("dogparks", "dogparks.example.com", "forest"),
			dir("desserts", "", "candy"),
			dir("cats", "", "forest"),
		},
		listing: map[string][]directory.Listing{
			"dogparks": {{Slug: "central", Category: directory.Category{Name: "Parks", Slug: "parks"}}},
		},
	}
	gen := &fakeGen{fail: map[string]bool{"cats": true}, leaks: []string{"desserts"}}
	o, opts := newTestOrchestrator(t, src, gen)

	var observed []string
	o.opts.OnResult = func(_ string, r Result) { observed = append(observed, r.DirectoryID+":"+string(r.Status)) }

	s := o.BuildAll(context.Background())

	require.Len(t, s.Results, 3)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 2, s.Succeeded())
	assert.Equal(t, []string{"dogparks:success", "desserts:success", "cats:failed"}, observed)
	assert.NotEmpty(t, s.RunID)

	require.Len(t, gen.jobs, 3)
	assert.Equal(t, "dogparks", gen.jobs[0].Env["CURRENT_DIRECTORY"])
	assert.Equal(t, "https://dogparks.example.com", gen.jobs[0].Env["SITE_URL"])
	assert.Equal(t, "https://sites.example.com/desserts", gen.jobs[1].Env["SITE_URL"])

	dist := opts.OutputDir
	assert.Equal(t, "<h1>dogparks</h1>", read(t, filepath.Join(dist, "dogparks", "index.html")))
	assert.NoDirExists(t, filepath.Join(dist, "dogparks", "dogparks"))
	assert.NoDirExists(t, filepath.Join(dist, "dogparks", "desserts"))
	assert.Equal(t, "icon", read(t, filepath.Join(dist, "dogparks", "favicon.ico")))

	sitemap := read(t, filepath.Join(dist, "dogparks", "sitemap.xml"))
	assert.Contains(t, sitemap, "<loc>https://dogparks.example.com/parks/central/</loc>")

	index := read(t, filepath.Join(dist, "sitemap-index.xml"))
	assert.Contains(t, index, "https://dogparks.example.com/sitemap.xml")
	assert.Contains(t, index, "https://sites.example.com/desserts/sitemap.xml")
	assert.NotContains(t, index, "/cats/")

	assert.Contains(t, read(t, filepath.Join(dist, "robots.txt")), "Sitemap: https://sites.example.com/sitemap-index.xml")
	assert.Contains(t, read(t, filepath.Join(dist, "_redirects")), "https://dogparks.example.com/* /dogparks/:splat 200")
	assert.Contains(t, read(t, filepath.Join(dist, "build-report.html")), "astro exited 1")
	assert.Contains(t, read(t, filepath.Join(dist, "index.html")), `href="/desserts/"`)

	var dm tenant.DomainMap
	require.NoError(t, json.Unmarshal([]byte(read(t, filepath.Join(dist, "domain-map.json"))), &dm))
	assert.Equal(t, "dogparks", dm.Domains["dogparks.example.com"])
	assert.Equal(t, []string{"cats", "desserts", "dogparks"}, dm.Directories)

	var buf bytes.Buffer
	require.NoError(t, s.WriteTable(&buf))
	assert.Contains(t, buf.String(), "2 built, 1 failed, 3 total")
}

func TestBuild_SingleAndUnknown(t *testing.T) {
	src := &fakeSource{dirs: []directory.Directory{dir("dogparks", "", ""), dir("desserts", "", "")}}
	gen := &fakeGen{}
	o, _ := newTestOrchestrator(t, src, gen)

	s, err := o.Build(context.Background(), "desserts")
	require.NoError(t, err)
	require.Len(t, s.Results, 1)
	assert.True(t, s.Results[0].Success())

	_, err = o.Build(context.Background(), "cats")
	assert.ErrorIs(t, err, ErrUnknownDirectory)
}

func TestEnumerate_Fallbacks(t *testing.T) {
	src := &fakeSource{err: errors.New("backend down")}
	o, opts := newTestOrchestrator(t, src, &fakeGen{})

	dirs, source := o.Enumerate(context.Background())
	assert.Equal(t, "default", source)
	assert.Equal(t, "dogparks", dirs[0].ID)
	assert.Equal(t, "desserts", dirs[1].ID)

	require.NoError(t, os.MkdirAll(filepath.Join(opts.ContentDir, "directories", "cafes"), 0o755))
	dirs, source = o.Enumerate(context.Background())
	assert.Equal(t, "content", source)
	require.Len(t, dirs, 1)
	assert.Equal(t, "cafes", dirs[0].ID)
	assert.Equal(t, []string{"Card"}, dirs[0].AvailableLayouts)
}

func TestBuildSelective(t *testing.T) {
	src := &fakeSource{dirs: []directory.Directory{
		dir("dogparks", "", "forest"),
		dir("desserts", "", "candy"),
		dir("cats", "", "forest"),
	}}

	cases := []struct {
		sel  Selector
		want []string
	}{
		{Selector{ChangedPath: "src/styles/themes/forest.css"}, []string{"dogparks", "cats"}},
		{Selector{ChangedPath: "./src/components/shared/Card.astro"}, []string{"dogparks", "desserts", "cats"}},
		{Selector{ChangedPath: "README.md"}, []string{"dogparks", "desserts", "cats"}},
		{Selector{ChangedPath: "content/directories/desserts/intro.md"}, []string{"desserts"}},
		{Selector{DirectoryID: "cats", ChangedPath: "src/components/shared/x"}, []string{"cats"}},
	}
	for _, tc := range cases {
		gen := &fakeGen{}
		o, _ := newTestOrchestrator(t, src, gen)
		s, err := o.BuildSelective(context.Background(), tc.sel)
		require.NoError(t, err)
		var got []string
		for _, r := range s.Results {
			got = append(got, r.DirectoryID)
		}
		assert.Equal(t, tc.want, got, "%+v", tc.sel)
	}
}

func TestBuild_CancelledContextFailsRemaining(t *testing.T) {
	src := &fakeSource{dirs: []directory.Directory{dir("a", "", ""), dir("b", "", "")}}
	o, _ := newTestOrchestrator(t, src, &fakeGen{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := o.BuildAll(ctx)
	assert.Equal(t, 2, s.Failed())
	assert.ErrorIs(t, s.Results[0].Err, context.Canceled)
}
