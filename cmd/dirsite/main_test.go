package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/dirsite/internal/api"
	"github.com/yanizio/dirsite/internal/backend"
	"github.com/yanizio/dirsite/internal/cache"
	"github.com/yanizio/dirsite/internal/config"
	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/history"
	"github.com/yanizio/dirsite/internal/requestinfo"
	"github.com/yanizio/dirsite/internal/tenant"
	"github.com/yanizio/dirsite/internal/view"
)

func testRouter(t *testing.T, hc config.HTTP) http.Handler {
	t.Helper()
	c := cache.NewTTL(cache.WithScope("cmd-test"))
	t.Cleanup(c.Close)
	svc := backend.NewService(backend.NewClient("http://127.0.0.1:1", "tok", time.Second), c,
		backend.Tables{Directories: "d", Listings: "l"})

	dist := fstest.MapFS{
		"index.html":          {Data: []byte("selector")},
		"404.html":            {Data: []byte("lost")},
		"dogparks/index.html": {Data: []byte("dogparks home")},
	}
	reg := tenant.NewRegistry([]string{"dogparks"}, map[string]string{"dogparks.example.com": "dogparks"})
	return newRouter(svc, view.New(""), api.Options{}, dist, reg, hc, &requestinfo.Enricher{})
}

func get(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouter(t *testing.T) {
	h := testRouter(t, config.HTTP{AssetPrefix: "/_astro/"})

	rec := get(h, http.MethodGet, "http://sites.example.com/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = get(h, http.MethodGet, "http://sites.example.com/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, http.MethodGet, "http://sites.example.com/")
	assert.Equal(t, "selector", rec.Body.String())

	rec = get(h, http.MethodGet, "http://sites.example.com/dogparks/")
	assert.Equal(t, "dogparks home", rec.Body.String())

	rec = get(h, http.MethodGet, "http://dogparks.example.com/")
	assert.Equal(t, "dogparks home", rec.Body.String())

	rec = get(h, http.MethodGet, "http://sites.example.com/cats/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lost", rec.Body.String())

	rec = get(h, http.MethodOptions, "http://sites.example.com/api/listings")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(h, http.MethodGet, "http://sites.example.com/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestRouter_ForceHTTPS(t *testing.T) {
	h := testRouter(t, config.HTTP{AssetPrefix: "/_astro/", ForceHTTPS: true})

	rec := get(h, http.MethodGet, "http://dogparks.example.com/parks/")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://dogparks.example.com/parks/", rec.Header().Get("Location"))

	rec = get(h, http.MethodGet, "http://localhost/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeployTargets(t *testing.T) {
	dirs := []directory.Directory{
		{ID: "dogparks", Domain: "dogparks.example.com",
			Deployment: directory.Deployment{Method: "s3", Options: map[string]string{"prefix": "dp"}}},
		{ID: "desserts"},
	}

	all, err := deployTargets("/srv/dist", dirs, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "/srv/dist/dogparks", all[0].Dir)
	assert.Equal(t, "dp", all[0].Option("prefix", ""))
	assert.Equal(t, "dogparks.example.com", all[0].Domain)

	one, err := deployTargets("/srv/dist", dirs, "desserts")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "desserts", one[0].DirectoryID)

	_, err = deployTargets("/srv/dist", dirs, "cats")
	assert.ErrorContains(t, err, `"cats"`)
}

func TestWriteHistory(t *testing.T) {
	var b strings.Builder
	err := writeHistory(&b, []history.Entry{{
		RunID: "0123456789abcdef", Kind: history.KindDeploy, DirectoryID: "dogparks",
		Method: "ftp", Status: "failed", Error: "530 login", StartedAt: time.Now(), DurationMS: 1200,
	}})
	require.NoError(t, err)
	out := b.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "530 login")
	assert.Contains(t, out, "1.2s")
}
