// internal/history/store.go
//
// Run-history ledger.
//
// Context
// -------
// Every directory build and deploy appends one row to `build_run` so
// `dirsite history` can answer "when did dogparks last build, and why did
// it fail?" across runs.  Rows of one CLI invocation share a uuid run id.
//
//	build_run (id PK, run_id, kind, directory_id, status, method, error,
//	           started_at, duration_ms)
//
// Notes
// -----
//   • Placeholders are written as "?" and rebound per driver.
//   • Ledger failures never fail a build; callers log and move on.

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/dirsite/internal/build"
	"github.com/yanizio/dirsite/internal/deploy"
)

// Entry kinds.
const (
	KindBuild  = "build"
	KindDeploy = "deploy"
)

// Entry is one row of build_run.
type Entry struct {
	ID          int64     `db:"id"`
	RunID       string    `db:"run_id"`
	Kind        string    `db:"kind"`
	DirectoryID string    `db:"directory_id"`
	Status      string    `db:"status"`
	Method      string    `db:"method"`
	Error       string    `db:"error"`
	StartedAt   time.Time `db:"started_at"`
	DurationMS  int64     `db:"duration_ms"`
}

// Duration returns DurationMS as a time.Duration.
func (e Entry) Duration() time.Duration { return time.Duration(e.DurationMS) * time.Millisecond }

// Store reads and writes the ledger.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

const schemaSQLite = `CREATE TABLE IF NOT EXISTS build_run (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	directory_id TEXT NOT NULL,
	status TEXT NOT NULL,
	method TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
)`

const schemaMySQL = `CREATE TABLE IF NOT EXISTS build_run (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(36) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	directory_id VARCHAR(128) NOT NULL,
	status VARCHAR(16) NOT NULL,
	method VARCHAR(32) NOT NULL DEFAULT '',
	error TEXT NOT NULL,
	started_at DATETIME(3) NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	INDEX idx_build_run_directory (directory_id, started_at)
)`

// Migrate creates build_run when missing.
func (s *Store) Migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.db.DriverName() == "mysql" {
		schema = schemaMySQL
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

const insertSQL = `INSERT INTO build_run (run_id, kind, directory_id, status, method, error, started_at, duration_ms) VALUES (:run_id, :kind, :directory_id, :status, :method, :error, :started_at, :duration_ms)`

// Record appends one entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	e.StartedAt = e.StartedAt.UTC()
	if _, err := s.db.NamedExecContext(ctx, insertSQL, e); err != nil {
		return fmt.Errorf("history: record %s/%s: %w", e.Kind, e.DirectoryID, err)
	}
	return nil
}

const (
	recentSQL            = `SELECT id, run_id, kind, directory_id, status, method, error, started_at, duration_ms FROM build_run ORDER BY started_at DESC, id DESC LIMIT ?`
	recentByDirectorySQL = `SELECT id, run_id, kind, directory_id, status, method, error, started_at, duration_ms FROM build_run WHERE directory_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`
)

// Recent returns the newest entries, optionally for one directory.
// limit <= 0 means 20.
func (s *Store) Recent(ctx context.Context, directoryID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		out []Entry
		err error
	)
	if directoryID == "" {
		err = s.db.SelectContext(ctx, &out, s.db.Rebind(recentSQL), limit)
	} else {
		err = s.db.SelectContext(ctx, &out, s.db.Rebind(recentByDirectorySQL), directoryID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return out, nil
}

/*────────────────────────────── converters ────────────────────────────────*/

// FromBuild converts a build result.  Method carries the run kind (all,
// single, selective).
func FromBuild(runID, kind string, r build.Result) Entry {
	e := Entry{
		RunID:       runID,
		Kind:        KindBuild,
		DirectoryID: r.DirectoryID,
		Status:      string(r.Status),
		Method:      kind,
		StartedAt:   r.Started,
		DurationMS:  r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// FromDeploy converts a deploy result.
func FromDeploy(runID string, r deploy.Result) Entry {
	e := Entry{
		RunID:       runID,
		Kind:        KindDeploy,
		DirectoryID: r.DirectoryID,
		Status:      string(build.StatusSuccess),
		Method:      r.Method,
		StartedAt:   r.Started,
		DurationMS:  r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		e.Status = string(build.StatusFailed)
		e.Error = r.Err.Error()
	}
	return e
}
