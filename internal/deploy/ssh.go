// internal/deploy/ssh.go
//
// SFTP upload over an SSH connection.
//
// Context
// -------
// The host key is checked against deploy.ssh.known_hosts on every dial and
// the driver refuses to run without that file.  Auth is a private key file,
// a password, or both.
//
// Notes
// -----
//   - The remote root is `path` or <deploy.ssh.root>/<id>.
//   - Like FTP, the upload only adds and overwrites.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yanizio/dirsite/internal/config"
)

// SSH uploads over SFTP.  Host keys are always checked against
// known_hosts.
type SSH struct {
	cfg config.SSH
}

func (d *SSH) Name() string { return "ssh" }

func (d *SSH) clientConfig() (*ssh.ClientConfig, error) {
	if d.cfg.KnownHosts == "" {
		return nil, errors.New("ssh deploy requires deploy.ssh.known_hosts")
	}
	hostKeys, err := knownhosts.New(d.cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}

	var auth []ssh.AuthMethod
	if d.cfg.KeyFile != "" {
		pem, err := os.ReadFile(d.cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if d.cfg.Password != "" {
		auth = append(auth, ssh.Password(d.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh deploy requires a key_file or password")
	}

	return &ssh.ClientConfig{
		User:            d.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         30 * time.Second,
	}, nil
}

func (d *SSH) Deploy(ctx context.Context, t Target) error {
	cc, err := d.clientConfig()
	if err != nil {
		return err
	}
	files, err := collect(t.Dir)
	if err != nil {
		return err
	}

	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", d.cfg.Addr)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", d.cfg.Addr, err)
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, d.cfg.Addr, cc)
	if err != nil {
		_ = raw.Close()
		return fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(conn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("sftp: %w", err)
	}
	defer sc.Close()

	root := t.Option("path", path.Join(d.cfg.Root, t.DirectoryID))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := path.Join(root, f.Rel)
		if err := sc.MkdirAll(path.Dir(dst)); err != nil {
			return fmt.Errorf("sftp mkdir %s: %w", path.Dir(dst), err)
		}
		if err := putSFTP(sc, f.Abs, dst); err != nil {
			return fmt.Errorf("sftp put %s: %w", dst, err)
		}
	}
	return nil
}

func putSFTP(sc *sftp.Client, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := sc.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
