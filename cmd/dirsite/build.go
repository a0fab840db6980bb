// cmd/dirsite/build.go
//
// build, build-all and build-selective.

package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanizio/dirsite/internal/build"
	"github.com/yanizio/dirsite/internal/history"
)

var (
	selDirectory string
	selChanged   string
)

var buildCmd = &cobra.Command{
	Use:   "build [id]",
	Short: "Build one directory (default: every directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			return report(a.orchestrator(ctx, "all").BuildAll(ctx))
		}
		s, err := a.orchestrator(ctx, "single").Build(ctx, args[0])
		if err != nil {
			return err
		}
		return report(s)
	},
}

var buildAllCmd = &cobra.Command{
	Use:   "build-all",
	Short: "Build every directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return report(a.orchestrator(ctx, "all").BuildAll(ctx))
	},
}

var buildSelectiveCmd = &cobra.Command{
	Use:   "build-selective",
	Short: "Build one directory, or the directories a changed path affects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if selDirectory == "" && selChanged == "" {
			return errors.New("build-selective needs --directory or --changed")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.orchestrator(ctx, "selective").BuildSelective(ctx, build.Selector{
			DirectoryID: selDirectory,
			ChangedPath: selChanged,
		})
		if err != nil {
			return err
		}
		return report(s)
	},
}

func init() {
	buildSelectiveCmd.Flags().StringVar(&selDirectory, "directory", "", "directory id to rebuild")
	buildSelectiveCmd.Flags().StringVar(&selChanged, "changed", "", "changed source path, resolved through build.dependencies")
}

// orchestrator wires config into a build.Orchestrator whose results land
// in the run history under kind.
func (a *app) orchestrator(ctx context.Context, kind string) *build.Orchestrator {
	b := a.cfg.Build
	deps := make(build.DependencyMap, 0, len(b.Dependencies))
	for _, d := range b.Dependencies {
		deps = append(deps, build.Dependency{Path: d.Path, All: d.All, Themes: d.Themes})
	}
	return build.New(a.svc, build.ExecGenerator{Command: b.Generator, Dir: b.GeneratorDir}, build.Options{
		OutputDir:          b.OutputDir,
		ContentDir:         b.ContentDir,
		PublicDir:          b.PublicDir,
		SiteURL:            a.cfg.Site.BaseURL,
		DefaultDirectories: b.DefaultDirectories,
		Dependencies:       deps,
		OnResult: func(runID string, r build.Result) {
			a.record(ctx, history.FromBuild(runID, kind, r))
		},
	})
}

func report(s *build.Summary) error {
	if err := s.WriteTable(os.Stdout); err != nil {
		return err
	}
	if s.Failed() > 0 {
		return errFailures
	}
	return nil
}
