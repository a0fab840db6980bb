// cmd/dirsite/deploy.go
//
// deploy <method> [id]
//
// Targets are every enumerated directory (or just id) with its dist/<id>
// tree, custom domain and per-directory deployment options.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yanizio/dirsite/internal/build"
	"github.com/yanizio/dirsite/internal/deploy"
	"github.com/yanizio/dirsite/internal/directory"
	"github.com/yanizio/dirsite/internal/history"
)

var deployCmd = &cobra.Command{
	Use:       "deploy <method> [id]",
	Short:     "Publish built directories (" + strings.Join(deploy.Methods, ", ") + ")",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: deploy.Methods,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		drv, err := deploy.New(args[0], a.cfg.Deploy)
		if err != nil {
			return err
		}

		dirs, _ := a.orchestrator(ctx, "deploy").Enumerate(ctx)
		id := ""
		if len(args) == 2 {
			id = args[1]
		}
		targets, err := deployTargets(a.cfg.Build.OutputDir, dirs, id)
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		results := deploy.Run(ctx, drv, targets, func(r deploy.Result) {
			a.record(ctx, history.FromDeploy(runID, r))
		})
		if err := deploy.WriteTable(os.Stdout, results); err != nil {
			return err
		}
		if deploy.Failed(results) > 0 {
			return errFailures
		}
		return nil
	},
}

func deployTargets(outDir string, dirs []directory.Directory, id string) ([]deploy.Target, error) {
	var out []deploy.Target
	for _, d := range dirs {
		if id != "" && d.ID != id {
			continue
		}
		out = append(out, deploy.Target{
			DirectoryID: d.ID,
			Dir:         filepath.Join(outDir, d.ID),
			Domain:      d.Domain,
			Options:     d.Deployment.Options,
		})
	}
	if id != "" && len(out) == 0 {
		return nil, fmt.Errorf("%w %q", build.ErrUnknownDirectory, id)
	}
	return out, nil
}
