// Package audit persists pipeline run history to a local sqlite database.
// This is ambient operational bookkeeping, not the compiled graph or the
// transformed data itself (spec.md §3 "Non-goals: not a persistent store"
// binds those, not run metadata — see SPEC_FULL.md §B).
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// Store wraps a sqlite connection holding the run_history table.
type Store struct {
	conn *sql.DB
}

// Open creates (if absent) and opens the sqlite database at path, running
// its one migration.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	conn.SetMaxOpenConns(1) // single-writer sqlite file, avoid SQLITE_BUSY under WAL

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS run_history (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	node_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT
)`)
	if err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.conn.Close() }

// RecordStart inserts a new in-progress run row.
func (s *Store) RecordStart(runID string, startedAt time.Time) error {
	_, err := s.conn.Exec(
		`INSERT INTO run_history (run_id, started_at, status) VALUES (?, ?, 'running')`,
		runID, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: record start: %w", err)
	}
	return nil
}

// RecordCompleted marks runID as completed successfully.
func (s *Store) RecordCompleted(runID string, finishedAt time.Time, nodeCount int) error {
	_, err := s.conn.Exec(
		`UPDATE run_history SET finished_at = ?, node_count = ?, status = 'completed' WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), nodeCount, runID,
	)
	if err != nil {
		return fmt.Errorf("audit: record completed: %w", err)
	}
	return nil
}

// RecordFailed marks runID as failed with the given error text.
func (s *Store) RecordFailed(runID string, finishedAt time.Time, runErr error) error {
	_, err := s.conn.Exec(
		`UPDATE run_history SET finished_at = ?, status = 'failed', error = ? WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), runErr.Error(), runID,
	)
	if err != nil {
		return fmt.Errorf("audit: record failed: %w", err)
	}
	return nil
}

// Run is one row of run_history.
type Run struct {
	RunID      string
	StartedAt  string
	FinishedAt sql.NullString
	NodeCount  int
	Status     string
	Error      sql.NullString
}

// Recent returns the most recent n runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	rows, err := s.conn.Query(
		`SELECT run_id, started_at, finished_at, node_count, status, error
		 FROM run_history ORDER BY started_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.NodeCount, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
