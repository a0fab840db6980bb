// internal/build/status.go
//
// Per-directory build results and the run summary printed by the CLI.

package build

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Status is a directory's position in pending → building → success|failed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusBuilding Status = "building"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

// Result records one directory's build.
type Result struct {
	DirectoryID string
	Status      Status
	Domain      string
	Err         error
	Started     time.Time
	Duration    time.Duration
	Repair      RepairReport
}

// Success reports whether the directory built cleanly.
func (r Result) Success() bool { return r.Status == StatusSuccess }

// Summary is the outcome of one orchestrator run.
type Summary struct {
	RunID    string
	Kind     string // all, single, selective
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Failed counts directories that did not build.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.Success() {
			n++
		}
	}
	return n
}

// Succeeded counts directories that built.
func (s *Summary) Succeeded() int { return len(s.Results) - s.Failed() }

// WriteTable prints one row per directory and a summary line.
func (s *Summary) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTORY\tSTATUS\tDURATION\tDOMAIN\tERROR")
	for _, r := range s.Results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		domain := r.Domain
		if domain == "" {
			domain = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.DirectoryID, r.Status, r.Duration.Round(time.Millisecond), domain, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d built, %d failed, %d total in %s\n",
		s.Succeeded(), s.Failed(), len(s.Results), s.Duration.Round(time.Millisecond))
	return err
}
