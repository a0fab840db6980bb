// cmd/dirsite/serve.go
//
// serve and dev.
//
// Routing
// -------
//
//	every req   → access log (requestinfo)
//	OPTIONS *   → edge preflight (204, CORS)
//	/healthz    → "ok"
//	/metrics    → Prometheus
//	/api/*      → internal/api
//	/*          → edge glue → static files under build.output_dir
//
// The whole tree is wrapped with ForceHTTPS when http.force_https is set.
// dev builds first and pins localhost to one directory.

package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/api"
	"github.com/yanizio/dirsite/internal/config"
	"github.com/yanizio/dirsite/internal/edge"
	"github.com/yanizio/dirsite/internal/middleware"
	"github.com/yanizio/dirsite/internal/requestinfo"
	"github.com/yanizio/dirsite/internal/server"
	"github.com/yanizio/dirsite/internal/tenant"
	"github.com/yanizio/dirsite/internal/view"
	"github.com/yanizio/dirsite/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built output and the JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.serve(ctx, a.registry(ctx))
	},
}

var devCmd = &cobra.Command{
	Use:   "dev [id]",
	Short: "Build, then serve with localhost mapped to one directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		if err := a.devBuild(ctx, id); err != nil {
			return err
		}

		reg := a.registry(ctx)
		if id == "" {
			if ids := reg.IDs(); len(ids) > 0 {
				id = ids[0]
			}
		}
		if id != "" {
			reg.SetLocalAlias(id)
			zap.S().Infow("localhost pinned", "directory", id)
		}
		return a.serve(ctx, reg)
	},
}

// devBuild builds before serving.  Failed directories are reported but do
// not stop the server; an unknown id does.
func (a *app) devBuild(ctx context.Context, id string) error {
	o := a.orchestrator(ctx, "dev")
	if id == "" {
		return o.BuildAll(ctx).WriteTable(os.Stdout)
	}
	s, err := o.Build(ctx, id)
	if err != nil {
		return err
	}
	return s.WriteTable(os.Stdout)
}

// registry prefers dist/domain-map.json and falls back to enumeration.
func (a *app) registry(ctx context.Context) *tenant.Registry {
	p := filepath.Join(a.cfg.Build.OutputDir, "domain-map.json")
	reg, err := tenant.Load(p)
	if err == nil {
		return reg
	}
	zap.S().Warnw("domain map unavailable, enumerating directories", "err", err)
	dirs, _ := a.orchestrator(ctx, "serve").Enumerate(ctx)
	return tenant.FromDirectories(dirs)
}

func (a *app) serve(ctx context.Context, reg *tenant.Registry) error {
	ri, err := requestinfo.New(a.cfg.HTTP.GeoIPDB)
	if err != nil {
		return err
	}
	defer ri.Close()

	views := view.New(a.cfg.Build.ThemesDir)
	h := newRouter(a.svc, views, api.Options{
		WebhookSecret: a.cfg.Webhook.Secret,
		Dispatcher: &webhook.Dispatcher{
			URL:       a.cfg.Webhook.DispatchURL,
			Token:     a.cfg.Webhook.DispatchToken,
			EventType: a.cfg.Webhook.EventType,
		},
	}, os.DirFS(a.cfg.Build.OutputDir), reg, a.cfg.HTTP, ri)
	return server.Run(ctx, server.New(a.cfg.HTTP.ListenAddr, h))
}

// newRouter assembles the serve/dev handler tree.
func newRouter(store api.Store, views *view.Renderer, opts api.Options, dist fs.FS,
	reg *tenant.Registry, hc config.HTTP, ri *requestinfo.Enricher) http.Handler {

	site := edge.Handler(dist, reg, edge.Options{AssetPrefix: hc.AssetPrefix}, http.FileServerFS(dist))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodOptions {
				site.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Use(tenant.Middleware(reg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api", api.New(store, views, opts).Routes())
	r.Handle("/*", site)

	var h http.Handler = r
	if hc.ForceHTTPS {
		h = middleware.ForceHTTPS(reg, h)
	}
	return ri.Middleware(h)
}
