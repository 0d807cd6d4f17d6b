// Package history persists one row per completed build in SQLite, giving
// watch mode a queryable record of what was built, when, and how it went.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/wikigen/internal/build"
)

// Store records build outcomes in a SQLite database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Entry is one recorded build.
type Entry struct {
	ID             int64
	BuildID        string
	Started        time.Time
	Finished       time.Time
	Full           bool
	Pages          int
	Rendered       int
	Reused         int
	Evicted        int
	DanglingLinks  int
	AmbiguousLinks int
	Warnings       int
	Errors         int
	Outcome        string
	Duration       time.Duration
}

// NewStore opens (or creates) the history database at path. Use ":memory:"
// for an ephemeral store.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		full INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		rendered INTEGER NOT NULL,
		reused INTEGER NOT NULL,
		evicted INTEGER NOT NULL,
		dangling INTEGER NOT NULL,
		ambiguous INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_finished ON builds(finished);
	CREATE INDEX IF NOT EXISTS idx_builds_outcome ON builds(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one row for a completed build.
func (s *Store) Record(ctx context.Context, report *build.BuildReport) error {
	if report == nil {
		return fmt.Errorf("history: nil report")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	full := 0
	if report.Full {
		full = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds
		(build_id, started, finished, full, pages, rendered, reused, evicted, dangling, ambiguous, warnings, errors, outcome, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.BuildID, report.Start.Unix(), report.End.Unix(), full,
		report.Pages, report.RenderedPages, report.ReusedPages, report.EvictedPages,
		report.DanglingLinks, report.AmbiguousLinks, len(report.Warnings), len(report.Errors),
		report.Outcome, report.End.Sub(report.Start).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}

	return nil
}

// Recent returns the most recent builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, started, finished, full, pages, rendered, reused, evicted, dangling, ambiguous, warnings, errors, outcome, duration_ms
		FROM builds ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished, durationMS int64
		var full int

		err := rows.Scan(&e.ID, &e.BuildID, &started, &finished, &full,
			&e.Pages, &e.Rendered, &e.Reused, &e.Evicted,
			&e.DanglingLinks, &e.AmbiguousLinks, &e.Warnings, &e.Errors,
			&e.Outcome, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}

		e.Started = time.Unix(started, 0)
		e.Finished = time.Unix(finished, 0)
		e.Full = full != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build records: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
