// internal/requestinfo/requestinfo.go
//
// Per-request metadata and the access-log middleware behind serve/dev.
//
/*
Context
--------
Middleware sits outermost in the serve/dev chain.  For every request it:

  1. Extracts the left-most client IP from X-Forwarded-For or X-Real-IP,
     falling back to `r.RemoteAddr`.
  2. Classifies the User-Agent (browser family, device class, bot flag).
  3. Looks up the client country when a GeoLite2 database is configured.
  4. Stores an *Info in the request context, calls next, then writes one
     access-log line and bumps dirsite_http_requests_total.

Notes
-----
  • The GeoLite2 reader is safe for concurrent reads.
  • Health and metrics scrapes are logged at debug level only.
*/
package requestinfo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/metrics"
)

// Info is the metadata attached to one request.
type Info struct {
	IP      net.IP
	Country string // ISO code, empty without a GeoIP database
	Browser string // "Chrome", "Firefox", …
	Device  string // "Computer", "Phone", "Tablet", …
	Bot     bool
	Started time.Time
}

type ctxKey struct{}

// FromContext returns the *Info stored by Middleware, or nil.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

/*──────────────────────────────── enricher ────────────────────────────────*/

// Enricher builds Info values.  The zero value works without geolocation.
type Enricher struct {
	country func(net.IP) string
	geo     *geoip2.Reader
}

// New opens geoDB when set.
func New(geoDB string) (*Enricher, error) {
	e := &Enricher{}
	if geoDB == "" {
		return e, nil
	}
	r, err := geoip2.Open(geoDB)
	if err != nil {
		return nil, fmt.Errorf("requestinfo: open %s: %w", geoDB, err)
	}
	e.geo = r
	e.country = func(ip net.IP) string {
		rec, err := r.Country(ip)
		if err != nil {
			return ""
		}
		return rec.Country.IsoCode
	}
	return e, nil
}

// Close releases the GeoIP database.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}

// Describe returns the Info for r.
func (e *Enricher) Describe(r *http.Request) *Info {
	ua := uasurfer.Parse(r.UserAgent())
	info := &Info{
		IP:      clientIP(r),
		Browser: strings.TrimPrefix(ua.Browser.Name.String(), "Browser"),
		Device:  strings.TrimPrefix(ua.DeviceType.String(), "Device"),
		Bot:     ua.IsBot(),
		Started: time.Now(),
	}
	if e.country != nil && info.IP != nil {
		info.Country = e.country(info.IP)
	}
	return info
}

/*─────────────────────────────── middleware ───────────────────────────────*/

// Middleware attaches *Info, serves, and logs the outcome.
func (e *Enricher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := e.Describe(r)
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, info)))

		client := "browser"
		if info.Bot {
			client = "bot"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(statusClass(rec.status), client).Inc()

		log := zap.S().Infow
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			log = zap.S().Debugw
		}
		log("http request",
			"method", r.Method,
			"host", r.Host,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"took", time.Since(info.Started),
			"ip", info.IP,
			"country", info.Country,
			"browser", info.Browser,
			"bot", info.Bot,
		)
	})
}

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wrote {
		r.status, r.wrote = code, true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wrote = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
