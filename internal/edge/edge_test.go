package edge

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/yanizio/dirsite/internal/tenant"
)

func newEdge(t *testing.T) (http.Handler, *[]string) {
	t.Helper()
	store := fstest.MapFS{
		"404.html":                    {Data: []byte("<h1>lost</h1>")},
		"robots.txt":                  {Data: []byte("User-agent: *")},
		"dogparks/index.html":         {Data: []byte("dogparks home")},
		"dogparks/_astro/app.js":      {Data: []byte("console.log(1)")},
		"dogparks/_astro/site.css":    {Data: []byte("body{}")},
		"desserts/_astro/desserts.js": {Data: []byte("x")},
		"_astro/shared.css":           {Data: []byte(".shared{}")},
	}
	reg := tenant.NewRegistry([]string{"dogparks", "desserts"},
		map[string]string{"dogparks.example.com": "dogparks"})

	var seen []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := tenant.IDFromContext(r.Context())
		seen = append(seen, r.URL.Path+"|"+id)
		w.WriteHeader(http.StatusOK)
	})
	return Handler(store, reg, Options{}, next), &seen
}

func serve(h http.Handler, method, target, referer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOptionsPreflight(t *testing.T) {
	h, seen := newEdge(t)
	rec := serve(h, http.MethodOptions, "http://sites.example.com/api/listings", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, *seen)
}

func TestAssetsForcedContentType(t *testing.T) {
	h, _ := newEdge(t)

	rec := serve(h, http.MethodGet, "http://sites.example.com/dogparks/_astro/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = serve(h, http.MethodGet, "http://sites.example.com/_astro/shared.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestAssetTenantInference(t *testing.T) {
	h, _ := newEdge(t)

	// Referer first segment.
	rec := serve(h, http.MethodGet, "http://sites.example.com/_astro/desserts.js",
		"http://sites.example.com/desserts/cakes/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x", rec.Body.String())

	// Referer on a mapped domain.
	rec = serve(h, http.MethodGet, "http://cdn.example.com/_astro/site.css", "https://dogparks.example.com/parks/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	// Referer on a mapped domain with no path.
	rec = serve(h, http.MethodGet, "http://cdn.example.com/_astro/app.js", "https://dogparks.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	// No hint at all.
	rec = serve(h, http.MethodGet, "http://sites.example.com/_astro/desserts.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<h1>lost</h1>", rec.Body.String())

	// Already prefixed but missing: no second guess.
	rec = serve(h, http.MethodGet, "http://sites.example.com/desserts/_astro/app.js",
		"http://sites.example.com/dogparks/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomDomainIsPrefixed(t *testing.T) {
	h, seen := newEdge(t)

	rec := serve(h, http.MethodGet, "http://www.dogparks.example.com/parks/central/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "http://dogparks.example.com/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "http://dogparks.example.com/_astro/app.js", "")
	assert.Equal(t, "console.log(1)", rec.Body.String())

	assert.Equal(t, []string{"/dogparks/parks/central/|dogparks", "/dogparks/|dogparks"}, *seen)
}

func TestRootAndAllowlist(t *testing.T) {
	h, seen := newEdge(t)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "http://sites.example.com/", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "http://sites.example.com/desserts/cakes/", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "http://sites.example.com/robots.txt", "").Code)

	rec := serve(h, http.MethodGet, "http://sites.example.com/cats/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = serve(h, http.MethodGet, "http://sites.example.com/../etc/passwd", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"/|", "/desserts/cakes/|desserts", "/robots.txt|"}, *seen)
}
