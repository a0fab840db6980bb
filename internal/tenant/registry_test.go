package tenant

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/dirsite/internal/directory"
)

func TestRegistry_HostMatching(t *testing.T) {
	r := FromDirectories([]directory.Directory{
		{ID: "dogparks", Domain: "dogparks.example.com"},
		{ID: "desserts"},
	})

	for _, host := range []string{"dogparks.example.com", "DOGPARKS.example.com:443", "www.dogparks.example.com"} {
		id, ok := r.ForHost(host)
		assert.True(t, ok, host)
		assert.Equal(t, "dogparks", id, host)
	}
	_, ok := r.ForHost("localhost:8080")
	assert.False(t, ok)

	r.SetLocalAlias("desserts")
	id, ok := r.ForHost("localhost:8080")
	assert.True(t, ok)
	assert.Equal(t, "desserts", id)

	assert.True(t, r.Known("desserts"))
	assert.False(t, r.Known("cats"))
	assert.Equal(t, "dogparks.example.com", r.DomainFor("dogparks"))
}

func TestRegistry_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dist", DomainMapFile)
	src := NewRegistry([]string{"b", "a"}, map[string]string{"a.example.com": "a", "ghost.example.com": "zzz"})
	require.NoError(t, src.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DomainMap{
		Domains:     map[string]string{"a.example.com": "a"},
		Directories: []string{"a", "b"},
	}, got.Snapshot())
}

func TestMiddleware_TagsMappedHost(t *testing.T) {
	r := NewRegistry([]string{"a"}, map[string]string{"a.example.com": "a"})

	var seen string
	h := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = IDFromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://a.example.com/x", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "a", seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "http://other.example.com/x", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, seen)
}
