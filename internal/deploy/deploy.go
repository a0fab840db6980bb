// internal/deploy/deploy.go
//
// Deployment drivers publish one directory's repaired output.
//
// Context
// -------
// `dirsite deploy <method> [id]` builds a Target per directory from
// dist/<id> and the directory's own deployment options, then hands each to
// the driver New returns.  Run deploys targets one after another; a failing
// target is recorded and never blocks the rest.
//
// Methods
// -------
//
//	manual  zip archive under deploy.manual_dir
//	ftp     plain FTP upload          (jlaffaye/ftp)
//	ssh     SFTP upload               (x/crypto/ssh + pkg/sftp)
//	s3      bucket upload             (aws-sdk-go-v2 upload manager)
//	gcs     bucket upload             (cloud.google.com/go/storage)
//	github  commit to a Pages branch  (go-git over an in-memory worktree)
//
// Per-directory options override driver defaults: path (ftp, ssh), prefix
// (s3, gcs), repo and branch (github).

package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/config"
	"github.com/yanizio/dirsite/internal/metrics"
)

// ErrUnknownMethod is returned by New for a method it does not know.
var ErrUnknownMethod = errors.New("unknown deploy method")

// Methods lists every supported method.
var Methods = []string{"manual", "ftp", "ssh", "s3", "gcs", "github"}

// Target is one directory to publish.
type Target struct {
	DirectoryID string
	Dir         string // dist/<id>
	Domain      string
	Options     map[string]string
}

// Option returns a per-directory option or def.
func (t Target) Option(key, def string) string {
	if v := strings.TrimSpace(t.Options[key]); v != "" {
		return v
	}
	return def
}

// Driver publishes a target.
type Driver interface {
	Name() string
	Deploy(ctx context.Context, t Target) error
}

// Result is the outcome for one target.
type Result struct {
	DirectoryID string
	Method      string
	Err         error
	Started     time.Time
	Duration    time.Duration
}

// New returns the driver for method.
func New(method string, cfg config.Deploy) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "manual":
		return &Manual{OutDir: cfg.ManualDir}, nil
	case "ftp":
		if cfg.FTP.Addr == "" {
			return nil, fmt.Errorf("ftp deploy requires deploy.ftp.addr")
		}
		return &FTP{cfg: cfg.FTP}, nil
	case "ssh":
		if cfg.SSH.Addr == "" {
			return nil, fmt.Errorf("ssh deploy requires deploy.ssh.addr")
		}
		return &SSH{cfg: cfg.SSH}, nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 deploy requires deploy.s3.bucket")
		}
		return &S3{cfg: cfg.S3}, nil
	case "gcs":
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("gcs deploy requires deploy.gcs.bucket")
		}
		return &GCS{cfg: cfg.GCS}, nil
	case "github":
		if cfg.GitHub.Repo == "" {
			return nil, fmt.Errorf("github deploy requires deploy.github.repo")
		}
		return &GitHub{cfg: cfg.GitHub}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMethod, method, strings.Join(Methods, ", "))
	}
}

// Run deploys every target sequentially.  onResult, when set, observes each
// outcome as it happens.
func Run(ctx context.Context, d Driver, targets []Target, onResult func(Result)) []Result {
	out := make([]Result, 0, len(targets))
	for _, t := range targets {
		start := time.Now()
		var err error
		if err = ctx.Err(); err == nil {
			if !isDir(t.Dir) {
				err = fmt.Errorf("no build output at %s", t.Dir)
			} else {
				err = d.Deploy(ctx, t)
			}
		}
		res := Result{DirectoryID: t.DirectoryID, Method: d.Name(), Err: err, Started: start, Duration: time.Since(start)}

		status := "success"
		if err != nil {
			status = "failed"
			zap.S().Errorw("deploy failed", "method", d.Name(), "directory", t.DirectoryID, "err", err)
		} else {
			zap.S().Infow("deployed", "method", d.Name(), "directory", t.DirectoryID, "took", res.Duration)
		}
		metrics.DeploysTotal.WithLabelValues(d.Name(), status).Inc()

		if onResult != nil {
			onResult(res)
		}
		out = append(out, res)
	}
	return out
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// WriteTable prints one row per target and a summary line.
func WriteTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTORY\tMETHOD\tSTATUS\tDURATION\tERROR")
	for _, r := range results {
		status, errText := "success", ""
		if r.Err != nil {
			status, errText = "failed", r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.DirectoryID, r.Method, status, r.Duration.Round(time.Millisecond), errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	failed := Failed(results)
	_, err := fmt.Fprintf(w, "\n%d deployed, %d failed, %d total\n", len(results)-failed, failed, len(results))
	return err
}
