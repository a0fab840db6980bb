// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"

	"github.com/yanizio/dirsite/internal/tenant"
)

// ForceHTTPS wraps h.  A plain-HTTP request whose Host is a mapped custom
// domain gets a 308 to the HTTPS URL.  Localhost, unmapped hosts, and
// requests a proxy already marked as HTTPS pass through unchanged.
func ForceHTTPS(reg *tenant.Registry, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.ServeHTTP(w, r)
			return
		}

		if reg.Mapped(r.Host) {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		h.ServeHTTP(w, r)
	})
}
