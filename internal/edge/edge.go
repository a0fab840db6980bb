// internal/edge/edge.go
//
// Request-time routing glue in front of the built dist/ tree.
//
// Workflow
// --------
//  1. OPTIONS                       → 204 with allow-all CORS headers.
//  2. Host is a mapped custom domain → path is prefixed with its directory
//     (dogparks.example.com/parks/ → /dogparks/parks/).
//  3. Asset request (asset prefix, *.js, *.css) → served straight from the
//     store with a forced Content-Type.  When the file is missing and the
//     path carries no directory prefix, the directory is inferred (domain
//     map, then Referer) and the prefixed file is tried instead.
//  4. "/"                           → next (directory selector page).
//  5. First segment not allowlisted → 404 (store's /404.html when present).
//     Root files such as /robots.txt pass through when they exist.
//  6. Everything else               → next with the rewritten path.
//
// The handler keeps no state besides the registry it was given.

package edge

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/metrics"
	"github.com/yanizio/dirsite/internal/tenant"
)

// Options tunes Handler.
type Options struct {
	AssetPrefix  string // default "/_astro/"
	NotFoundPage string // default "/404.html"
}

func (o Options) withDefaults() Options {
	if o.AssetPrefix == "" {
		o.AssetPrefix = "/_astro/"
	}
	if o.NotFoundPage == "" {
		o.NotFoundPage = "/404.html"
	}
	return o
}

// Fingerprinted generator output is safe to cache forever.
const assetCacheMarker = "/_astro/"

var forcedTypes = map[string]string{
	".js":  "application/javascript; charset=utf-8",
	".mjs": "application/javascript; charset=utf-8",
	".css": "text/css; charset=utf-8",
}

// Handler wraps next with directory routing over store.
func Handler(store fs.FS, reg *tenant.Registry, opts Options, next http.Handler) http.Handler {
	opts = opts.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			cors(w)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		p := r.URL.Path
		if p == "" {
			p = "/"
		}
		hostID, mapped := reg.ForHost(r.Host)
		if mapped && firstSegment(p) != hostID {
			p = "/" + hostID + p
		}

		if isAsset(p, opts.AssetPrefix) {
			serveAsset(w, r, store, reg, opts, p)
			return
		}

		if p == "/" {
			next.ServeHTTP(w, r)
			return
		}

		id := firstSegment(p)
		if !reg.Known(id) {
			if !strings.Contains(strings.Trim(p, "/"), "/") && exists(store, p) {
				next.ServeHTTP(w, r)
				return
			}
			notFound(w, r, store, opts)
			return
		}
		forward(next, w, r, p, id)
	})
}

/*──────────────────────────────── assets ──────────────────────────────────*/

func isAsset(p, prefix string) bool {
	if strings.Contains(p, prefix) {
		return true
	}
	_, forced := forcedTypes[strings.ToLower(path.Ext(p))]
	return forced
}

func serveAsset(w http.ResponseWriter, r *http.Request, store fs.FS, reg *tenant.Registry, opts Options, p string) {
	if serveFile(w, r, store, p) {
		return
	}
	if reg.Known(firstSegment(p)) {
		notFound(w, r, store, opts)
		return
	}

	id, source := inferTenant(r, reg)
	if id == "" {
		notFound(w, r, store, opts)
		return
	}
	rewritten := "/" + id + p
	if !serveFile(w, r, store, rewritten) {
		notFound(w, r, store, opts)
		return
	}
	metrics.EdgeRewritesTotal.WithLabelValues(source).Inc()
	zap.S().Debugw("asset rewritten", "from", p, "to", rewritten, "source", source)
}

// inferTenant guesses the directory an unprefixed asset belongs to.
func inferTenant(r *http.Request, reg *tenant.Registry) (id, source string) {
	if id, ok := reg.ForHost(r.Host); ok {
		return id, "domain"
	}
	ref, err := url.Parse(r.Referer())
	if err != nil {
		return "", ""
	}
	if id, ok := reg.ForHost(ref.Host); ok {
		return id, "referer"
	}
	if ref.Path == "" {
		return "", ""
	}
	if id := firstSegment(ref.Path); reg.Known(id) {
		return id, "referer"
	}
	return "", ""
}

// serveFile writes store's file at p and reports whether it existed.
func serveFile(w http.ResponseWriter, r *http.Request, store fs.FS, p string) bool {
	name, ok := fsName(p)
	if !ok {
		return false
	}
	info, err := fs.Stat(store, name)
	if err != nil || info.IsDir() {
		return false
	}
	b, err := fs.ReadFile(store, name)
	if err != nil {
		return false
	}
	if ct, ok := forcedTypes[strings.ToLower(path.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	if strings.Contains(p, assetCacheMarker) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	cors(w)
	http.ServeContent(w, r, path.Base(name), info.ModTime(), bytes.NewReader(b))
	return true
}

/*──────────────────────────────── helpers ─────────────────────────────────*/

func forward(next http.Handler, w http.ResponseWriter, r *http.Request, p, id string) {
	r2 := r.WithContext(tenant.WithID(r.Context(), id))
	if p != r.URL.Path {
		u := *r.URL
		u.Path, u.RawPath = p, ""
		r2.URL = &u
	}
	next.ServeHTTP(w, r2)
}

func notFound(w http.ResponseWriter, r *http.Request, store fs.FS, opts Options) {
	w.Header().Set("Cache-Control", "no-store")
	if name, ok := fsName(opts.NotFoundPage); ok {
		if b, err := fs.ReadFile(store, name); err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = w.Write(b)
			}
			return
		}
	}
	http.NotFound(w, r)
}

func cors(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Max-Age", "86400")
}

func exists(store fs.FS, p string) bool {
	name, ok := fsName(p)
	if !ok {
		return false
	}
	info, err := fs.Stat(store, name)
	return err == nil && !info.IsDir()
}

// fsName turns a URL path into a valid fs.FS name.
func fsName(p string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

func firstSegment(p string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	return seg
}
