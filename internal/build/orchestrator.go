// internal/build/orchestrator.go
//
// Build orchestrator.
//
// Workflow
// --------
//  1. Enumerate directories: backend → `<content>/directories/*` scan →
//     configured default ids.  The first source that yields ids wins.
//  2. For each selected directory, sequentially:
//     pending → building → run generator with the directory environment →
//     repair output → copy shared public assets (no overwrite) → write the
//     directory sitemap → success | failed.
//  3. Write run artifacts (sitemap index, robots, redirects, domain map,
//     report, selector page).
//
// A failing directory never stops the run.  Summary.Failed() tells the CLI
// whether to exit non-zero.

package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/metrics"
)

// ErrUnknownDirectory is returned by Build for an id no source knows.
var ErrUnknownDirectory = errors.New("unknown directory")

// Source supplies directory data.  *backend.Service satisfies it.
type Source interface {
	ListDirectories(ctx context.Context) ([]directory.Directory, error)
	ListListings(ctx context.Context, dirID string) ([]directory.Listing, error)
	ListLandingPages(ctx context.Context, dirID string) ([]directory.LandingPage, error)
}

// Options configures an Orchestrator.
type Options struct {
	OutputDir          string
	ContentDir         string
	PublicDir          string
	SiteURL            string
	DefaultDirectories []string
	Dependencies       DependencyMap

	// OnResult, when set, observes every finished directory.
	OnResult func(runID string, r Result)
}

// Selector picks directories for BuildSelective.  DirectoryID wins over
// ChangedPath.
type Selector struct {
	DirectoryID string
	ChangedPath string
}

// Orchestrator builds directories one at a time.
type Orchestrator struct {
	src  Source
	gen  Generator
	opts Options
	now  func() time.Time
}

// New returns an Orchestrator.  src may be nil for offline builds.
func New(src Source, gen Generator, opts Options) *Orchestrator {
	return &Orchestrator{src: src, gen: gen, opts: opts, now: time.Now}
}

// Enumerate returns every directory and the source that supplied it.
func (o *Orchestrator) Enumerate(ctx context.Context) ([]directory.Directory, string) {
	if o.src != nil {
		dirs, err := o.src.ListDirectories(ctx)
		switch {
		case err != nil:
			zap.S().Warnw("backend directory list failed, falling back", "err", err)
		case len(dirs) > 0:
			return dirs, "backend"
		}
	}
	if ids := KnownFromDisk(o.opts.ContentDir); len(ids) > 0 {
		return stubs(ids), "content"
	}
	zap.S().Warnw("using default directories", "ids", o.opts.DefaultDirectories)
	return stubs(o.opts.DefaultDirectories), "default"
}

func stubs(ids []string) []directory.Directory {
	out := make([]directory.Directory, 0, len(ids))
	for _, id := range ids {
		d := directory.NewDirectory(directory.DirectoryRecord{DirectoryID: id, Name: id})
		out = append(out, d)
	}
	return out
}

// BuildAll builds every enumerated directory.
func (o *Orchestrator) BuildAll(ctx context.Context) *Summary {
	dirs, _ := o.Enumerate(ctx)
	return o.run(ctx, "all", dirs, dirs)
}

// Build builds a single directory.
func (o *Orchestrator) Build(ctx context.Context, id string) (*Summary, error) {
	dirs, source := o.Enumerate(ctx)
	for _, d := range dirs {
		if d.ID == id {
			return o.run(ctx, "single", []directory.Directory{d}, dirs), nil
		}
	}
	return nil, fmt.Errorf("%w %q (source: %s)", ErrUnknownDirectory, id, source)
}

// BuildSelective builds what sel selects.  A changed path is resolved through
// the dependency map.
func (o *Orchestrator) BuildSelective(ctx context.Context, sel Selector) (*Summary, error) {
	if sel.DirectoryID != "" {
		return o.Build(ctx, sel.DirectoryID)
	}
	dirs, _ := o.Enumerate(ctx)
	targets := o.opts.Dependencies.Affected(sel.ChangedPath, dirs)
	ids := make([]string, 0, len(targets))
	for _, d := range targets {
		ids = append(ids, d.ID)
	}
	zap.S().Infow("selective build", "changed", sel.ChangedPath, "directories", ids)
	return o.run(ctx, "selective", targets, dirs), nil
}

func (o *Orchestrator) run(ctx context.Context, kind string, targets, known []directory.Directory) *Summary {
	s := &Summary{RunID: uuid.New().String(), Kind: kind, Started: o.now()}
	for _, d := range targets {
		s.Results = append(s.Results, Result{DirectoryID: d.ID, Domain: d.Domain, Status: StatusPending})
	}

	knownIDs := make([]string, 0, len(known))
	for _, d := range known {
		knownIDs = append(knownIDs, d.ID)
	}

	for i, d := range targets {
		res := &s.Results[i]
		res.Started = o.now()
		res.Status = StatusBuilding
		zap.S().Infow("directory build start", "run", s.RunID, "directory", d.ID)

		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.Repair, res.Err = o.buildOne(ctx, d, knownIDs)
		}

		res.Duration = o.now().Sub(res.Started)
		if res.Err != nil {
			res.Status = StatusFailed
			zap.S().Errorw("directory build failed", "run", s.RunID, "directory", d.ID, "err", res.Err)
		} else {
			res.Status = StatusSuccess
			zap.S().Infow("directory build done", "run", s.RunID, "directory", d.ID, "took", res.Duration)
		}
		metrics.BuildsTotal.WithLabelValues(string(res.Status)).Inc()
		metrics.BuildDuration.Observe(res.Duration.Seconds())
		if o.opts.OnResult != nil {
			o.opts.OnResult(s.RunID, *res)
		}
	}

	s.Duration = o.now().Sub(s.Started)
	o.writeRunArtifacts(known, s)
	return s
}

func (o *Orchestrator) buildOne(ctx context.Context, d directory.Directory, known []string) (RepairReport, error) {
	out := filepath.Join(o.opts.OutputDir, d.ID)
	job := Job{
		DirectoryID: d.ID,
		OutputDir:   out,
		Env: map[string]string{
			"CURRENT_DIRECTORY": d.ID,
			"SITE_URL":          SiteURL(o.opts.SiteURL, d),
			"OUTPUT_DIR":        out,
		},
	}
	if err := o.gen.Generate(ctx, job); err != nil {
		return RepairReport{}, err
	}

	rep, err := Repairer{Known: known}.Repair(o.opts.OutputDir, d.ID)
	if err != nil {
		return rep, fmt.Errorf("generator produced no output: %w", err)
	}

	if o.opts.PublicDir != "" && isDir(o.opts.PublicDir) {
		if err := copyTree(o.opts.PublicDir, out, true); err != nil {
			zap.S().Warnw("public asset copy incomplete", "directory", d.ID, "err", err)
		}
	}

	listings, pages := o.fetchContent(ctx, d.ID)
	if err := WriteSitemap(o.opts.OutputDir, o.opts.SiteURL, d, listings, pages); err != nil {
		zap.S().Warnw("sitemap not written", "directory", d.ID, "err", err)
	}
	return rep, nil
}

// fetchContent loads listings and landing pages concurrently.  Failures
// degrade to empty slices; the sitemap is then home-only.
func (o *Orchestrator) fetchContent(ctx context.Context, id string) ([]directory.Listing, []directory.LandingPage) {
	if o.src == nil {
		return nil, nil
	}
	var (
		listings []directory.Listing
		pages    []directory.LandingPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listings, err = o.src.ListListings(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		pages, err = o.src.ListLandingPages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		zap.S().Warnw("directory content fetch failed", "directory", id, "err", err)
		return nil, nil
	}
	return listings, pages
}

func (o *Orchestrator) writeRunArtifacts(known []directory.Directory, s *Summary) {
	out := o.opts.OutputDir
	if err := os.MkdirAll(out, 0o755); err != nil {
		zap.S().Warnw("output dir unavailable", "dir", out, "err", err)
		return
	}

	built := make([]directory.Directory, 0, len(known))
	for _, d := range known {
		if _, err := os.Stat(filepath.Join(out, d.ID, "sitemap.xml")); err == nil {
			built = append(built, d)
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"sitemap-index", func() error { return WriteSitemapIndex(out, o.opts.SiteURL, built) }},
		{"robots", func() error { return WriteRobots(out, o.opts.SiteURL) }},
		{"redirects", func() error { return WriteRedirects(out, known) }},
		{"domain-map", func() error { return WriteDomainMap(out, known) }},
		{"report", func() error { return WriteReport(out, s) }},
		{"selector", func() error { _, err := WriteSelector(out, known); return err }},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			zap.S().Warnw("run artifact not written", "artifact", st.name, "err", err)
		}
	}
}
