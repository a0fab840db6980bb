package requestinfo

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"garbage then ip", map[string]string{"X-Forwarded-For": "unknown, 198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"real ip", map[string]string{"X-Real-Ip": "198.51.100.9"}, "10.0.0.2:5000", "198.51.100.9"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(r).String())
		})
	}
}

func TestMiddleware_AttachesInfo(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	e.country = func(ip net.IP) string {
		if ip.Equal(net.ParseIP("203.0.113.7")) {
			return "NZ"
		}
		return ""
	}

	var got *Info
	h := e.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dogparks/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "NZ", got.Country)
	assert.Equal(t, "Chrome", got.Browser)
	assert.False(t, got.Bot)
	assert.False(t, got.Started.IsZero())
}

func TestFromContext_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, FromContext(r.Context()))
}

func TestRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &recorder{ResponseWriter: w, status: http.StatusOK}
	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rec.status, "status is fixed once the body starts")
	assert.Equal(t, 5, rec.bytes)
	assert.Equal(t, "2xx", statusClass(rec.status))
	assert.Equal(t, "4xx", statusClass(http.StatusNotFound))
}

func TestNew_BadDatabase(t *testing.T) {
	_, err := New(t.TempDir() + "/missing.mmdb")
	assert.Error(t, err)
}
