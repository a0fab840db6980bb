// internal/api/api.go
//
// JSON API served by `dirsite serve` and `dirsite dev`.
//
// Routes (mounted at /api)
// ------------------------
//
//	GET  /directory?id=
//	GET  /listings?directory=[&category=]
//	GET  /search?directory=&q=
//	GET  /render-layout?layout=&directory=
//	POST /webhook
//
// Every response uses one envelope:
//
//	{"success": true,  "data": …}            directory, listings
//	{"success": true,  "results": […]}       search
//	{"success": false, "message": …, "error": …}
//
// A missing directory parameter falls back to the tenant the request Host
// maps to (tenant.Middleware).

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/backend"
	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/middleware"
	"github.com/yanizio/dirsite/internal/tenant"
	"github.com/yanizio/dirsite/internal/view"
	"github.com/yanizio/dirsite/internal/webhook"
)

// Store is the data contract the API reads.  *backend.Service satisfies it.
type Store interface {
	GetDirectory(ctx context.Context, id string) (*directory.Directory, error)
	ListListings(ctx context.Context, dirID string) ([]directory.Listing, error)
	ListListingsByCategory(ctx context.Context, dirID, categoryID string) ([]directory.Listing, error)
	SearchListings(ctx context.Context, dirID, query string) ([]directory.Listing, error)
	InvalidateTable(table, dirID string) int
	Tables() backend.Tables
}

// Dispatcher triggers a downstream rebuild.  *webhook.Dispatcher satisfies
// it.
type Dispatcher interface {
	Dispatch(ctx context.Context, p webhook.Payload) error
}

// Options configures the API.
type Options struct {
	WebhookSecret string
	Dispatcher    Dispatcher
}

// API holds handler dependencies.
type API struct {
	store  Store
	views  *view.Renderer
	secret string
	hook   Dispatcher
}

// New returns an API.  views may be nil, in which case render-layout
// answers 503.
func New(store Store, views *view.Renderer, opts Options) *API {
	return &API{store: store, views: views, secret: opts.WebhookSecret, hook: opts.Dispatcher}
}

// Routes builds the router mounted at /api.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Security)
	r.Get("/directory", a.handleDirectory)
	r.Get("/listings", a.handleListings)
	r.Get("/search", a.handleSearch)
	r.Get("/render-layout", a.handleRenderLayout)
	r.Post("/webhook", a.handleWebhook)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusNotFound, "unknown endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return r
}

/*──────────────────────────────── envelope ────────────────────────────────*/

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Results any    `json:"results,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Debugw("api response write failed", "err", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string, err error) {
	env := envelope{Message: msg}
	if err != nil {
		env.Error = err.Error()
	}
	writeJSON(w, status, env)
}

// failBackend maps a Store error to 400, 404, or 502.
func failBackend(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, backend.ErrInvalidValue) {
		fail(w, http.StatusBadRequest, "invalid "+what+" reference", err)
		return
	}
	if errors.Is(err, backend.ErrNotFound) {
		fail(w, http.StatusNotFound, what+" not found", err)
		return
	}
	zap.S().Errorw("api backend error", "path", r.URL.Path, "err", err)
	fail(w, http.StatusBadGateway, "backend unavailable", err)
}

// directoryParam reads name from the query, falling back to the Host tenant.
// It writes a 400 and reports false when the id is missing or malformed.
func directoryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get(name))
	if id == "" {
		id, _ = tenant.IDFromContext(r.Context())
	}
	switch {
	case id == "":
		fail(w, http.StatusBadRequest, "missing directory", nil)
		return "", false
	case !backend.ValidValue(id):
		fail(w, http.StatusBadRequest, "invalid directory id", nil)
		return "", false
	}
	return id, true
}

/*──────────────────────────────── handlers ────────────────────────────────*/

func (a *API) handleDirectory(w http.ResponseWriter, r *http.Request) {
	id, valid := directoryParam(w, r, "id")
	if !valid {
		return
	}
	d, err := a.store.GetDirectory(r.Context(), id)
	if err != nil {
		failBackend(w, r, "directory", err)
		return
	}
	ok(w, d)
}

func (a *API) handleListings(w http.ResponseWriter, r *http.Request) {
	id, valid := directoryParam(w, r, "directory")
	if !valid {
		return
	}

	var (
		listings []directory.Listing
		err      error
	)
	if cat := strings.TrimSpace(r.URL.Query().Get("category")); cat != "" {
		listings, err = a.store.ListListingsByCategory(r.Context(), id, cat)
	} else {
		listings, err = a.store.ListListings(r.Context(), id)
	}
	if err != nil {
		failBackend(w, r, "listings", err)
		return
	}
	if listings == nil {
		listings = []directory.Listing{}
	}
	ok(w, listings)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	id, valid := directoryParam(w, r, "directory")
	if !valid {
		return
	}
	results, err := a.store.SearchListings(r.Context(), id, r.URL.Query().Get("q"))
	if err != nil {
		failBackend(w, r, "listings", err)
		return
	}
	if results == nil {
		results = []directory.Listing{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Results: results})
}

func (a *API) handleRenderLayout(w http.ResponseWriter, r *http.Request) {
	if a.views == nil {
		fail(w, http.StatusServiceUnavailable, "layout rendering disabled", nil)
		return
	}
	id, valid := directoryParam(w, r, "directory")
	if !valid {
		return
	}

	d, err := a.store.GetDirectory(r.Context(), id)
	if err != nil {
		failBackend(w, r, "directory", err)
		return
	}
	listings, err := a.store.ListListings(r.Context(), id)
	if err != nil {
		failBackend(w, r, "listings", err)
		return
	}

	layout := r.URL.Query().Get("layout")
	html, err := a.views.RenderToString(d, layout, listings)
	switch {
	case errors.Is(err, view.ErrLayoutNotAvailable):
		fail(w, http.StatusBadRequest, "layout not available", err)
	case errors.Is(err, view.ErrUnknownLayout):
		fail(w, http.StatusNotFound, "layout not found", err)
	case err != nil:
		zap.S().Errorw("layout render failed", "directory", id, "layout", layout, "err", err)
		fail(w, http.StatusInternalServerError, "render failed", err)
	default:
		if layout == "" {
			layout = d.DefaultLayout
		}
		ok(w, map[string]any{"layout": layout, "html": html})
	}
}
