// internal/deploy/manual.go
//
// The manual method writes one zip per directory for hosts that only take
// dashboard uploads.
package deploy

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Manual writes <OutDir>/<id>-<timestamp>.zip for hand upload.
type Manual struct {
	OutDir string
	now    func() time.Time
}

func (m *Manual) Name() string { return "manual" }

// Deploy archives t.Dir.
func (m *Manual) Deploy(ctx context.Context, t Target) error {
	name, err := m.Archive(ctx, t)
	if err == nil {
		zap.S().Infow("deploy archive written", "directory", t.DirectoryID, "file", name)
	}
	return err
}

// Archive writes the zip and returns its path.
func (m *Manual) Archive(ctx context.Context, t Target) (string, error) {
	out := t.Option("out", m.OutDir)
	if out == "" {
		out = filepath.Join(filepath.Dir(t.Dir), "_deploy")
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", err
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	name := filepath.Join(out, fmt.Sprintf("%s-%s.zip", t.DirectoryID, now().UTC().Format("20060102-150405")))

	files, err := collect(t.Dir)
	if err != nil {
		return "", err
	}

	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	zw := zip.NewWriter(f)
	for _, fl := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = os.Remove(name)
			return "", err
		}
		if err := addZip(zw, fl); err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = os.Remove(name)
			return "", fmt.Errorf("zip %s: %w", fl.Rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	return name, f.Close()
}

func addZip(zw *zip.Writer, fl file) error {
	src, err := os.Open(fl.Abs)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = fl.Rel
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
