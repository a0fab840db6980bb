// cmd/dirsite/history.go
//
// history [--directory id] [--limit n]

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanizio/dirsite/internal/history"
)

var (
	histDirectory string
	histLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent build and deploy runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.hist == nil {
			return errors.New("run history is not available (see history.driver / history.dsn)")
		}

		entries, err := a.hist.Recent(ctx, histDirectory, histLimit)
		if err != nil {
			return err
		}
		return writeHistory(os.Stdout, entries)
	},
}

func init() {
	historyCmd.Flags().StringVar(&histDirectory, "directory", "", "only this directory")
	historyCmd.Flags().IntVar(&histLimit, "limit", 20, "rows to show")
}

func writeHistory(w io.Writer, entries []history.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tDIRECTORY\tMETHOD\tSTATUS\tDURATION\tRUN\tERROR")
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime), e.Kind, e.DirectoryID, e.Method,
			e.Status, e.Duration().Round(time.Millisecond), run, e.Error)
	}
	return tw.Flush()
}
