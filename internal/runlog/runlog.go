// Package runlog persists worker run records in a workspace-local SQLite
// database (.claude/fleet.db). Task files stay the source of truth for
// status; the run log is the queryable history of what actually ran.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBRelPath is the database location relative to the workspace root.
const DBRelPath = ".claude/fleet.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL,
	project      TEXT NOT NULL,
	tier         TEXT NOT NULL,
	exit_code    INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	stdout_bytes INTEGER NOT NULL DEFAULT 0,
	stderr_bytes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task_id, started_at);

CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	type      TEXT NOT NULL,
	detail    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
`

// Run is one completed worker invocation.
type Run struct {
	RunID       string
	TaskID      string
	Project     string
	Tier        string
	ExitCode    int
	StartedAt   time.Time
	CompletedAt time.Time
	StdoutBytes int
	StderrBytes int
}

// Event is one timestamped note attached to a run.
type Event struct {
	RunID     string
	Timestamp time.Time
	Type      string
	Detail    string
}

// Store is the run log database handle. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the workspace run log.
func Open(workspace string) (*Store, error) {
	path := filepath.Join(workspace, DBRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create runlog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open runlog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init runlog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one completed run.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, task_id, project, tier, exit_code, started_at, completed_at, stdout_bytes, stderr_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.TaskID, r.Project, r.Tier, r.ExitCode,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.CompletedAt.UTC().Format(time.RFC3339Nano),
		r.StdoutBytes, r.StderrBytes,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordEvent appends one event to a run's trail.
func (s *Store) RecordEvent(ctx context.Context, e Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, timestamp, type, detail) VALUES (?, ?, ?, ?)`,
		e.RunID, ts.UTC().Format(time.RFC3339Nano), e.Type, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("record event for run %s: %w", e.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, project, tier, exit_code, started_at, completed_at, stdout_bytes, stderr_bytes
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsForTask returns all runs of one task, newest first.
func (s *Store) RunsForTask(ctx context.Context, taskID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, project, tier, exit_code, started_at, completed_at, stdout_bytes, stderr_bytes
		FROM runs WHERE task_id = ? ORDER BY started_at DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", taskID, err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var started, completed string
		if err := rows.Scan(&r.RunID, &r.TaskID, &r.Project, &r.Tier, &r.ExitCode,
			&started, &completed, &r.StdoutBytes, &r.StderrBytes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
