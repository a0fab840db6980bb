// internal/deploy/files.go
//
// File enumeration and key helpers shared by every driver.
package deploy

import (
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// file is one regular file of a target, Rel in slash form.
type file struct {
	Rel  string
	Abs  string
	Size int64
}

// collect lists every regular file under root in lexical order.
func collect(root string) ([]file, error) {
	var out []file
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, file{Rel: filepath.ToSlash(rel), Abs: p, Size: info.Size()})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, err
}

// contentType guesses from the extension, falling back to octet-stream.
func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// objectKey joins a bucket prefix and a relative path.
func objectKey(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
