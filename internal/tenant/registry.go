// internal/tenant/registry.go
//
// Directory tenant registry: the allowlist of known directory ids plus the
// custom-domain → directory map.
//
// Context
// -------
// The build writes `dist/domain-map.json` once per run:
//
//	{
//	  "domains":     {"dogparks.example.com": "dogparks"},
//	  "directories": ["desserts", "dogparks"]
//	}
//
// `serve` and `dev` load that file into a Registry, which the edge handler
// and API consult on every request.  The snapshot is immutable after load
// except for the dev-only localhost alias.
//
// Notes
// -----
//   - Hosts are matched lower-case, without port, and with a leading "www."
//     removed.
//   - "localhost" maps to the alias set by SetLocalAlias, so `dirsite dev
//     dogparks` can serve one directory at the bare root.

package tenant

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/directory"
)

// DomainMapFile is the artifact name inside the output directory.
const DomainMapFile = "domain-map.json"

// DomainMap is the on-disk shape of the registry.
type DomainMap struct {
	Domains     map[string]string `json:"domains"`
	Directories []string          `json:"directories"`
}

// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	ids        map[string]struct{}
	domains    map[string]string
	localAlias string
}

// NewRegistry builds a registry from ids and a domain map.  Domains that
// point at unknown ids are dropped.
func NewRegistry(ids []string, domains map[string]string) *Registry {
	r := &Registry{ids: map[string]struct{}{}, domains: map[string]string{}}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			r.ids[id] = struct{}{}
		}
	}
	for host, id := range domains {
		if _, ok := r.ids[id]; !ok {
			zap.S().Warnw("domain maps to unknown directory, dropped", "domain", host, "directory", id)
			continue
		}
		r.domains[canonicalHost(host)] = id
	}
	return r
}

// FromDirectories derives a registry from backend records.
func FromDirectories(dirs []directory.Directory) *Registry {
	ids := make([]string, 0, len(dirs))
	domains := map[string]string{}
	for _, d := range dirs {
		ids = append(ids, d.ID)
		if d.Domain != "" {
			domains[d.Domain] = d.ID
		}
	}
	return NewRegistry(ids, domains)
}

// Load reads a domain map written by Save.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain map: %w", err)
	}
	var dm DomainMap
	if err := json.Unmarshal(b, &dm); err != nil {
		return nil, fmt.Errorf("decode domain map %s: %w", path, err)
	}
	return NewRegistry(dm.Directories, dm.Domains), nil
}

// Save writes the registry as a domain map.
func (r *Registry) Save(path string) error {
	b, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Snapshot returns a copy in on-disk form with sorted ids.
func (r *Registry) Snapshot() DomainMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dm := DomainMap{Domains: make(map[string]string, len(r.domains)), Directories: r.idsLocked()}
	for h, id := range r.domains {
		dm.Domains[h] = id
	}
	return dm
}

// IDs returns the known directory ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *Registry) idsLocked() []string {
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Known reports whether id is an allowlisted directory.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// ForHost maps a request Host header to its directory.
func (r *Registry) ForHost(host string) (string, bool) {
	h := canonicalHost(host)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.domains[h]; ok {
		return id, true
	}
	if (h == "localhost" || h == "127.0.0.1") && r.localAlias != "" {
		return r.localAlias, true
	}
	return "", false
}

// Mapped reports whether host is a custom domain in the map.  The local
// alias does not count.
func (r *Registry) Mapped(host string) bool {
	h := canonicalHost(host)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.domains[h]
	return ok
}

// DomainFor returns the custom domain of id, if any.
func (r *Registry) DomainFor(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for h, d := range r.domains {
		if d == id {
			return h
		}
	}
	return ""
}

// SetLocalAlias makes localhost resolve to id.  Empty clears it.
func (r *Registry) SetLocalAlias(id string) {
	r.mu.Lock()
	r.localAlias = id
	r.mu.Unlock()
}

// canonicalHost lower-cases, strips the port, and drops "www.".
func canonicalHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}
