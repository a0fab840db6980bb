// internal/deploy/ftp.go
//
// Plain FTP upload.
//
// Notes
// -----
//   - Files land under `path` when the directory sets it, otherwise
//     /<deploy.ftp.root>/<id>.
//   - Remote folders are created on the way down; nothing is deleted, so a
//     page removed from the build stays on the server.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/config"
)

// FTP uploads over plain FTP, one file at a time.
type FTP struct {
	cfg config.FTP
}

func (d *FTP) Name() string { return "ftp" }

func (d *FTP) Deploy(ctx context.Context, t Target) error {
	files, err := collect(t.Dir)
	if err != nil {
		return err
	}

	conn, err := ftp.Dial(d.cfg.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", d.cfg.Addr, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(d.cfg.User, d.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	root := t.Option("path", path.Join("/", d.cfg.Root, t.DirectoryID))
	made := map[string]bool{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := path.Join(root, f.Rel)
		mkdirAll(conn, path.Dir(dst), made)

		src, err := os.Open(f.Abs)
		if err != nil {
			return err
		}
		err = conn.Stor(dst, src)
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("ftp stor %s: %w", dst, err)
		}
	}
	zap.S().Debugw("ftp upload done", "directory", t.DirectoryID, "files", len(files), "root", root)
	return nil
}

// mkdirAll creates each missing component.  Servers answer 550 for an
// existing directory, so MakeDir errors are ignored; Stor reports real
// failures.
func mkdirAll(conn *ftp.ServerConn, dir string, made map[string]bool) {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		if made[cur] {
			continue
		}
		_ = conn.MakeDir(cur)
		made[cur] = true
	}
}
