// cmd/dirsite/main.go
//
// dirsite – build, serve and deploy one static site per directory.
//
// Start-up
// --------
//
//  1. Console logger for the bootstrap phase.
//  2. Config (conf/.env → conf/dirsite.yaml → DIRSITE_* env → vault: refs).
//  3. Rotating file logger, teed to the console on a TTY.
//  4. Backend service over one explicit TTL cache instance.
//  5. Run history ledger (optional; failures only warn).
//
// Commands then borrow what they need from *app.  Exit status is 1 on any
// configuration error or any failed directory.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/backend"
	"github.com/yanizio/dirsite/internal/cache"
	"github.com/yanizio/dirsite/internal/config"
	"github.com/yanizio/dirsite/internal/database"
	"github.com/yanizio/dirsite/internal/history"
	"github.com/yanizio/dirsite/internal/logger"
)

// errFailures marks a run that completed with failed directories.  The
// table already told the story, so main prints nothing more.
var errFailures = errors.New("one or more directories failed")

var (
	rootFlag     string
	logLevelFlag string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintln(os.Stderr, "dirsite:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "dirsite",
	Short:         "Multi-tenant directory website builder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default: DIRSITE_ROOT or nearest conf/dirsite.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(buildCmd, buildAllCmd, buildSelectiveCmd, deployCmd, devCmd, serveCmd, historyCmd)
}

/*──────────────────────────────── app ─────────────────────────────────────*/

// app is the per-process wiring shared by every command.
type app struct {
	cfg   *config.Config
	cache *cache.TTL
	svc   *backend.Service
	db    *sqlx.DB
	hist  *history.Store
}

// newApp loads config and wires the backend.  The caller must defer
// app.Close().
func newApp(ctx context.Context) (*app, error) {
	logger.Console()

	var opts []config.LoadOption
	if rootFlag != "" {
		opts = append(opts, config.WithRoot(rootFlag))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	if _, err := logger.New(cfg.Log.Dir, level, logger.IsTerminal()); err != nil {
		return nil, fmt.Errorf("start logger: %w", err)
	}

	c := cache.NewTTL(cache.WithScope("backend"))
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)
	a := &app{
		cfg:   cfg,
		cache: c,
		svc: backend.NewService(client, c, backend.Tables{
			Directories:  cfg.Backend.Tables.Directories,
			Listings:     cfg.Backend.Tables.Listings,
			LandingPages: cfg.Backend.Tables.LandingPages,
		}),
	}
	a.openHistory(ctx)
	return a, nil
}

func (a *app) openHistory(ctx context.Context) {
	db, err := database.Open(a.cfg.History.Driver, a.cfg.History.DSN)
	if err != nil {
		zap.S().Warnw("run history disabled", "driver", a.cfg.History.Driver, "err", err)
		return
	}
	st := history.New(db)
	if err := st.Migrate(ctx); err != nil {
		zap.S().Warnw("run history disabled", "err", err)
		_ = db.Close()
		return
	}
	a.db, a.hist = db, st
}

// record appends e to the ledger when one is open, even after ctx is
// cancelled.
func (a *app) record(ctx context.Context, e history.Entry) {
	if a.hist == nil {
		return
	}
	if err := a.hist.Record(context.WithoutCancel(ctx), e); err != nil {
		zap.S().Warnw("history record failed", "directory", e.DirectoryID, "err", err)
	}
}

func (a *app) Close() {
	a.cache.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = zap.L().Sync()
}
