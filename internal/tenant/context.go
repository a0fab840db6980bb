// context.go carries the resolved directory id through a request.
package tenant

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithID returns a copy of ctx carrying the directory id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the directory id stored by WithID or Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware tags requests whose Host is a mapped custom domain.
func Middleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := reg.ForHost(r.Host); ok {
				r = r.WithContext(WithID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
