// internal/cache/ttl.go
//
// In-memory key/value store with per-entry expiry.
//
// Context
// -------
// The backend service routes every NocoDB read through one TTL instance so
// repeated calls during a build or a dev session share hits.  The instance
// is constructed once per process (build run or server) and handed to each
// consumer; there is no package-level singleton.
//
// Expiry rules
// ------------
//   - Set with ttl > 0 stores an absolute expiry and arms a deferred timer.
//   - The timer is advisory.  Get and Has always compare the expiry with
//     the clock, so a late (or never firing) timer cannot serve stale data.
//   - A timer evicts only the generation it was armed for.  Re-setting a
//     key before the old timer fires keeps the new value alive.
//   - An entry is expired when now >= expiry.
//
// There is no size bound.  This is a TTL cache, not an LRU; see lru.go for
// the bounded variant used by the layout renderer.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/yanizio/dirsite/internal/metrics"
)

type ttlEntry struct {
	value  any
	expiry time.Time // zero => no expiry
	gen    uint64
	timer  *time.Timer
}

func (e *ttlEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

// TTL is safe for concurrent use.  Zero value is unusable; construct with
// NewTTL.
type TTL struct {
	mu    sync.Mutex
	items map[string]*ttlEntry
	gen   uint64
	now   func() time.Time
	scope string
}

// Option configures a TTL cache.
type Option func(*TTL)

// WithClock replaces time.Now.  Tests use it to step over expiry boundaries
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *TTL) { c.now = now }
}

// WithScope labels hit/miss metrics (for example "backend").
func WithScope(scope string) Option {
	return func(c *TTL) { c.scope = scope }
}

// NewTTL returns an empty cache.
func NewTTL(opts ...Option) *TTL {
	c := &TTL{
		items: make(map[string]*ttlEntry),
		now:   time.Now,
		scope: "default",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Set stores value under key.  ttl <= 0 means the entry never expires.
func (c *TTL) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[key]; ok && old.timer != nil {
		old.timer.Stop()
	}

	c.gen++
	ent := &ttlEntry{value: value, gen: c.gen}
	if ttl > 0 {
		ent.expiry = c.now().Add(ttl)
		gen := ent.gen
		ent.timer = time.AfterFunc(ttl, func() { c.evict(key, gen) })
	}
	c.items[key] = ent
}

// Get returns the live value for key.  The second result is false when the
// key is absent or expired.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(c.scope).Inc()
		return nil, false
	}
	if ent.expired(c.now()) {
		c.removeLocked(key, ent)
		metrics.CacheMissesTotal.WithLabelValues(c.scope).Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(c.scope).Inc()
	return ent.value, true
}

// Has performs the same liveness check as Get without returning the value.
func (c *TTL) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return false
	}
	if ent.expired(c.now()) {
		c.removeLocked(key, ent)
		return false
	}
	return true
}

// Delete removes key immediately.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.items[key]; ok {
		c.removeLocked(key, ent)
	}
}

// Clear empties the whole store.
func (c *TTL) Clear() { c.ClearPrefix("") }

// ClearPrefix removes every key starting with prefix and returns how many
// entries were dropped.  An empty prefix clears everything.
func (c *TTL) ClearPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, ent := range c.items {
		if strings.HasPrefix(k, prefix) {
			c.removeLocked(k, ent)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, including expired ones that
// have not been evicted yet.
func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops every pending timer and drops all entries.
func (c *TTL) Close() { c.Clear() }

func (c *TTL) evict(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.items[key]; ok && ent.gen == gen {
		delete(c.items, key)
	}
}

func (c *TTL) removeLocked(key string, ent *ttlEntry) {
	if ent.timer != nil {
		ent.timer.Stop()
	}
	delete(c.items, key)
}
