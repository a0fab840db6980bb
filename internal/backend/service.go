// internal/backend/service.go
//
// Cached, typed access to directories, listings, and landing pages.
//
// Context
// -------
// The build, the API, and the layout renderer all ask for the same few
// records.  Service puts the TTL cache in front of Client and collapses
// concurrent identical misses with singleflight, so a cold cache during a
// build costs one backend round-trip per distinct query.
//
// Cache keys
// ----------
//
//	<tableID>|<directoryID or *>|<operation>|<request URL>
//
// The leading table id lets a content webhook drop one table (optionally one
// directory) without touching the others.
//
// TTLs
// ----
//   - directories      1 h
//   - listings         5 min
//   - category lists  10 min
//   - search           1 min
//   - landing pages    1 h
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/dirsite/internal/cache"
	"github.com/yanizio/dirsite/internal/directory"
)

const (
	TTLDirectories     = time.Hour
	TTLListings        = 5 * time.Minute
	TTLCategoryListing = 10 * time.Minute
	TTLSearch          = time.Minute
	TTLLandingPages    = time.Hour
)

const allDirectories = "*"

// Tables holds NocoDB table ids.
type Tables struct {
	Directories  string
	Listings     string
	LandingPages string
}

// Logical table names accepted by Tables.Resolve.
const (
	TableDirectories  = "directories"
	TableListings     = "listings"
	TableLandingPages = "landing_pages"
)

// Resolve maps a logical name or a raw table id to the configured table id.
func (t Tables) Resolve(name string) (string, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_") {
	case TableDirectories:
		return t.Directories, t.Directories != ""
	case TableListings:
		return t.Listings, t.Listings != ""
	case TableLandingPages:
		return t.LandingPages, t.LandingPages != ""
	}
	for _, id := range []string{t.Directories, t.Listings, t.LandingPages} {
		if id != "" && id == name {
			return id, true
		}
	}
	return "", false
}

// Service is safe for concurrent use.
type Service struct {
	client *Client
	cache  *cache.TTL
	tables Tables
	group  singleflight.Group
}

// NewService wires a client to a cache.  The cache is shared with whoever
// else the caller hands it to.
func NewService(client *Client, c *cache.TTL, tables Tables) *Service {
	return &Service{client: client, cache: c, tables: tables}
}

// Tables returns the configured table ids.
func (s *Service) Tables() Tables { return s.tables }

func cacheKey(table, dirID, op, requestURL string) string {
	return table + "|" + dirID + "|" + op + "|" + requestURL
}

// cached returns the value under key or loads, stores, and returns it.
// Errors are never cached.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	load func(context.Context) (T, error)) (T, error) {

	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	// Loads ignore the first caller's cancellation.  Each caller still stops
	// waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (any, error) {
		val, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, val, ttl)
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			zap.S().Debugw("backend miss collapsed", "key", key)
		}
		return res.Val.(T), nil
	}
}

func decodeRows[R any](rows []json.RawMessage) []R {
	out := make([]R, 0, len(rows))
	for _, raw := range rows {
		var r R
		if err := json.Unmarshal(raw, &r); err != nil {
			zap.S().Warnw("backend row skipped", "err", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

/*────────────────────────────── directories ───────────────────────────────*/

// ListDirectories returns every directory tenant.
func (s *Service) ListDirectories(ctx context.Context) ([]directory.Directory, error) {
	q := Query{Sort: "Directory_ID"}
	key := cacheKey(s.tables.Directories, allDirectories, "directories",
		s.client.RequestURL(s.tables.Directories, q))

	return cached(ctx, s, key, TTLDirectories, func(ctx context.Context) ([]directory.Directory, error) {
		rows, err := s.client.List(ctx, s.tables.Directories, q)
		if err != nil {
			return nil, err
		}
		recs := decodeRows[directory.DirectoryRecord](rows)
		out := make([]directory.Directory, 0, len(recs))
		for _, r := range recs {
			d := directory.NewDirectory(r)
			if d.ID == "" {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	})
}

// GetDirectory returns one directory or ErrNotFound.
func (s *Service) GetDirectory(ctx context.Context, id string) (*directory.Directory, error) {
	if err := checkValues(id); err != nil {
		return nil, err
	}
	q := Query{Where: Eq("Directory_ID", id), Limit: 1}
	key := cacheKey(s.tables.Directories, id, "directory",
		s.client.RequestURL(s.tables.Directories, q))

	return cached(ctx, s, key, TTLDirectories, func(ctx context.Context) (*directory.Directory, error) {
		rows, err := s.client.List(ctx, s.tables.Directories, q)
		if err != nil {
			return nil, err
		}
		recs := decodeRows[directory.DirectoryRecord](rows)
		if len(recs) == 0 {
			return nil, fmt.Errorf("directory %q: %w", id, ErrNotFound)
		}
		d := directory.NewDirectory(recs[0])
		return &d, nil
	})
}

/*──────────────────────────────── listings ────────────────────────────────*/

func (s *Service) listingsQuery(where string) Query {
	return Query{Where: where, Sort: "-Featured,Title"}
}

// ListListings returns every listing of a directory, featured first.
func (s *Service) ListListings(ctx context.Context, dirID string) ([]directory.Listing, error) {
	if err := checkValues(dirID); err != nil {
		return nil, err
	}
	q := s.listingsQuery(Eq("Directory_ID", dirID))
	key := cacheKey(s.tables.Listings, dirID, "listings", s.client.RequestURL(s.tables.Listings, q))

	return cached(ctx, s, key, TTLListings, func(ctx context.Context) ([]directory.Listing, error) {
		return s.loadListings(ctx, dirID, q)
	})
}

// ListListingsByCategory narrows ListListings to one category, referenced
// by id, slug, or name.  The match runs over the cached listing set since
// category names are free text.
func (s *Service) ListListingsByCategory(ctx context.Context, dirID, categoryRef string) ([]directory.Listing, error) {
	if err := checkValues(dirID); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(categoryRef)
	q := s.listingsQuery(Eq("Directory_ID", dirID))
	key := cacheKey(s.tables.Listings, dirID, "category-listings",
		s.client.RequestURL(s.tables.Listings, q)+"#category="+ref)

	return cached(ctx, s, key, TTLCategoryListing, func(ctx context.Context) ([]directory.Listing, error) {
		all, err := s.ListListings(ctx, dirID)
		if err != nil {
			return nil, err
		}
		out := make([]directory.Listing, 0)
		for _, l := range all {
			if l.Category.Matches(ref) {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

// GetListing returns one listing or ErrNotFound.
func (s *Service) GetListing(ctx context.Context, dirID, slug string) (*directory.Listing, error) {
	if err := checkValues(dirID, slug); err != nil {
		return nil, err
	}
	q := Query{Where: And(Eq("Directory_ID", dirID), Eq("Slug", slug)), Limit: 1}
	key := cacheKey(s.tables.Listings, dirID, "listing", s.client.RequestURL(s.tables.Listings, q))

	return cached(ctx, s, key, TTLListings, func(ctx context.Context) (*directory.Listing, error) {
		ls, err := s.loadListings(ctx, dirID, q)
		if err != nil {
			return nil, err
		}
		if len(ls) == 0 {
			return nil, fmt.Errorf("listing %s/%s: %w", dirID, slug, ErrNotFound)
		}
		return &ls[0], nil
	})
}

// SearchListings is a case-insensitive substring match over title,
// description, tags, and address.  An empty query matches nothing.
func (s *Service) SearchListings(ctx context.Context, dirID, query string) ([]directory.Listing, error) {
	if err := checkValues(dirID); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []directory.Listing{}, nil
	}
	q := s.listingsQuery(Eq("Directory_ID", dirID))
	key := cacheKey(s.tables.Listings, dirID, "search",
		s.client.RequestURL(s.tables.Listings, q)+"#q="+needle)

	return cached(ctx, s, key, TTLSearch, func(ctx context.Context) ([]directory.Listing, error) {
		all, err := s.ListListings(ctx, dirID)
		if err != nil {
			return nil, err
		}
		hits := make([]directory.Listing, 0)
		for _, l := range all {
			if matches(&l, needle) {
				hits = append(hits, l)
			}
		}
		return hits, nil
	})
}

func matches(l *directory.Listing, needle string) bool {
	hay := []string{l.Title, l.Description, l.Address}
	hay = append(hay, l.Tags...)
	for _, h := range hay {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func (s *Service) loadListings(ctx context.Context, dirID string, q Query) ([]directory.Listing, error) {
	dir, err := s.GetDirectory(ctx, dirID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rows, err := s.client.List(ctx, s.tables.Listings, q)
	if err != nil {
		return nil, err
	}
	recs := decodeRows[directory.ListingRecord](rows)
	out := make([]directory.Listing, 0, len(recs))
	for _, r := range recs {
		out = append(out, directory.NewListing(r, dir))
	}
	return out, nil
}

/*───────────────────────────── landing pages ──────────────────────────────*/

// ListLandingPages returns a directory's pages ordered by Order.  A
// deployment without a landing-pages table returns none.
func (s *Service) ListLandingPages(ctx context.Context, dirID string) ([]directory.LandingPage, error) {
	if s.tables.LandingPages == "" {
		return []directory.LandingPage{}, nil
	}
	if err := checkValues(dirID); err != nil {
		return nil, err
	}
	q := Query{Where: Eq("Directory_ID", dirID), Sort: "Order"}
	key := cacheKey(s.tables.LandingPages, dirID, "landing-pages",
		s.client.RequestURL(s.tables.LandingPages, q))

	return cached(ctx, s, key, TTLLandingPages, func(ctx context.Context) ([]directory.LandingPage, error) {
		rows, err := s.client.List(ctx, s.tables.LandingPages, q)
		if err != nil {
			return nil, err
		}
		recs := decodeRows[directory.LandingPageRecord](rows)
		out := make([]directory.LandingPage, 0, len(recs))
		for _, r := range recs {
			out = append(out, directory.NewLandingPage(r))
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
		return out, nil
	})
}

/*────────────────────────────── invalidation ──────────────────────────────*/

// InvalidateTable drops cached entries of one table id, optionally scoped to
// one directory.  Directory-scoped invalidation also drops the table's
// cross-directory entries, which include that directory.
func (s *Service) InvalidateTable(table, dirID string) int {
	if table == "" {
		return 0
	}
	var n int
	if dirID == "" {
		n = s.cache.ClearPrefix(table + "|")
	} else {
		n = s.cache.ClearPrefix(table+"|"+dirID+"|") +
			s.cache.ClearPrefix(table+"|"+allDirectories+"|")
	}
	zap.S().Infow("backend cache invalidated", "table", table, "directory", dirID, "entries", n)
	return n
}
