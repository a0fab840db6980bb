// internal/build/repair.go
//
// Build-output repair.
//
// Context
// -------
// The generator sometimes writes a directory's pages one level too deep
// (`dist/dogparks/dogparks/index.html`) and sometimes leaves pages of other
// directories inside a directory's output (`dist/dogparks/desserts/…`).
// Repair fixes both after every generator run.
//
// Contract
// --------
//  1. Flatten: while `<out>/<id>/<id>/` exists, merge it into `<out>/<id>/`.
//     Merge never overwrites: a destination file that already exists is
//     kept and the nested copy is dropped.  Sub-directories merge
//     recursively.  Entries are visited in lexical order.
//  2. Leak removal: every `<out>/<id>/<other>/` whose name is another known
//     directory id is deleted.
//
// Given the same tree and the same Known set, Repair always produces the
// same result, and running it twice changes nothing the second time.
// Per-entry failures are collected as warnings; only a missing output
// directory is an error.

package build

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const maxFlattenDepth = 8

// Repairer fixes generator output for one directory at a time.
type Repairer struct {
	Known []string
}

// RepairReport describes what one Repair call changed.
type RepairReport struct {
	Flattened    int      // nested levels merged
	Moved        int      // entries moved or copied up
	Dropped      int      // nested duplicates discarded
	RemovedLeaks []string // foreign directory folders deleted
	Warnings     []string
}

func (r *RepairReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Changed reports whether Repair modified the tree.
func (r RepairReport) Changed() bool {
	return r.Flattened > 0 || len(r.RemovedLeaks) > 0
}

// Repair applies the flatten and leak-removal passes to outputDir/id.
func (rp Repairer) Repair(outputDir, id string) (RepairReport, error) {
	var rep RepairReport
	root := filepath.Join(outputDir, id)

	fi, err := os.Stat(root)
	if err != nil {
		return rep, fmt.Errorf("repair %s: %w", id, err)
	}
	if !fi.IsDir() {
		return rep, fmt.Errorf("repair %s: %s is not a directory", id, root)
	}

	// A run that stopped mid-merge leaves its staging folder behind.
	if stale := filepath.Join(root, ".repair-"+id); isDir(stale) {
		mergeDir(stale, root, &rep)
		if err := os.RemoveAll(stale); err != nil {
			rep.warn("remove %s: %v", stale, err)
		}
		rep.Flattened++
	}

	for depth := 0; depth < maxFlattenDepth; depth++ {
		nested := filepath.Join(root, id)
		if !isDir(nested) {
			break
		}
		// Move the nested folder aside first so a deeper id/id/id level
		// lands at root/id and is picked up by the next iteration.
		staging := filepath.Join(root, ".repair-"+id)
		if err := os.Rename(nested, staging); err != nil {
			rep.warn("stage %s: %v", nested, err)
			staging = nested
		}
		mergeDir(staging, root, &rep)
		if err := os.RemoveAll(staging); err != nil {
			rep.warn("remove %s: %v", staging, err)
		}
		rep.Flattened++
		if staging == nested {
			break
		}
	}

	known := append([]string(nil), rp.Known...)
	sort.Strings(known)
	for _, other := range known {
		if other == id || other == "" {
			continue
		}
		leak := filepath.Join(root, other)
		if !isDir(leak) {
			continue
		}
		if err := os.RemoveAll(leak); err != nil {
			rep.warn("remove leaked %s: %v", leak, err)
			continue
		}
		rep.RemovedLeaks = append(rep.RemovedLeaks, other)
	}

	for _, w := range rep.Warnings {
		zap.S().Warnw("repair warning", "directory", id, "detail", w)
	}
	if rep.Changed() {
		zap.S().Infow("build output repaired",
			"directory", id, "flattened", rep.Flattened, "moved", rep.Moved,
			"dropped", rep.Dropped, "leaks", rep.RemovedLeaks)
	}
	return rep, nil
}

// mergeDir moves src's entries into dst without overwriting.
func mergeDir(src, dst string, rep *RepairReport) {
	entries, err := os.ReadDir(src)
	if err != nil {
		rep.warn("read %s: %v", src, err)
		return
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())

		dfi, statErr := os.Lstat(d)
		switch {
		case statErr != nil:
			if err := move(s, d); err != nil {
				rep.warn("move %s: %v", s, err)
				continue
			}
			rep.Moved++
		case e.IsDir() && dfi.IsDir():
			mergeDir(s, d, rep)
		default:
			rep.Dropped++
		}
	}
}

// move renames, falling back to copy+remove across devices.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyTree(src, dst, false); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyTree copies src to dst.  With noOverwrite, existing files are kept.
// It returns the first error encountered.
func copyTree(src, dst string, noOverwrite bool) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if noOverwrite {
			if _, err := os.Lstat(target); err == nil {
				return nil
			}
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// KnownFromDisk lists directory ids from `<contentDir>/directories/*`.  It
// is the fallback when the backend cannot be reached.
func KnownFromDisk(contentDir string) []string {
	entries, err := os.ReadDir(filepath.Join(contentDir, "directories"))
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		ids = append(ids, name)
	}
	return ids
}
