// internal/build/deps.go
//
// Selective-build dependency map.
//
// A changed source path is matched by prefix against configured rules:
//
//	src/components/shared/  → all directories
//	src/styles/themes/forest.css → directories whose theme is "forest"
//
// A path under `<content>/directories/<id>/` affects only that directory.
// A path that matches no rule rebuilds everything.

package build

import (
	"path/filepath"
	"strings"

	"github.com/yanizio/dirsite/internal/directory"
)

// Dependency maps a path prefix to affected directories.
type Dependency struct {
	Path   string
	All    bool
	Themes []string
}

// DependencyMap is evaluated in order; every matching rule contributes.
type DependencyMap []Dependency

// Affected returns the subset of dirs a change to path requires rebuilding,
// preserving the order of dirs.
func (m DependencyMap) Affected(path string, dirs []directory.Directory) []directory.Directory {
	path = normalizePath(path)

	if id, ok := contentDirectory(path); ok {
		for _, d := range dirs {
			if d.ID == id {
				return []directory.Directory{d}
			}
		}
	}

	matched, all := false, false
	themes := map[string]bool{}
	for _, dep := range m {
		if !strings.HasPrefix(path, normalizePath(dep.Path)) {
			continue
		}
		matched = true
		if dep.All {
			all = true
		}
		for _, t := range dep.Themes {
			themes[t] = true
		}
	}

	if !matched || all {
		return dirs
	}
	var out []directory.Directory
	for _, d := range dirs {
		if themes[d.Theme] {
			out = append(out, d)
		}
	}
	return out
}

func normalizePath(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	return strings.TrimPrefix(p, "./")
}

// contentDirectory recognises `…content/directories/<id>/…`.
func contentDirectory(path string) (string, bool) {
	const marker = "content/directories/"
	i := strings.Index(path, marker)
	if i < 0 || (i > 0 && path[i-1] != '/') {
		return "", false
	}
	rest := path[i+len(marker):]
	id, _, _ := strings.Cut(rest, "/")
	return id, id != ""
}
