// Package store archives finished sessions in SQLite. Each session keeps its
// summary row, its artifacts, its conflict history and the full Result as
// JSON so it can be rendered again later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"forge/internal/logging"
	"forge/internal/orchestrator"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id is not archived.
var ErrNotFound = errors.New("session not found")

// SessionSummary is one row of the history listing.
type SessionSummary struct {
	ID            string
	Title         string
	Outcome       string
	Steps         int
	OpenConflicts int
	Artifacts     int
	StartedAt     time.Time
	Duration      time.Duration
}

// Archive is a SQLite-backed session archive.
type Archive struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (and creates if needed) the archive at path.
func Open(path string) (*Archive, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()
	log := logging.Get(logging.CategoryStore)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	a := &Archive{db: db, path: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Session archive ready at %s", path)
	return a, nil
}

// Path returns the database path.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			open_conflicts INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			result_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (session_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS conflicts (
			session_id TEXT NOT NULL,
			conflict_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			target TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, conflict_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_kind ON conflicts(kind)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save archives r, replacing any earlier copy of the same session.
func (a *Archive) Save(ctx context.Context, r orchestrator.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, title, outcome, steps, open_conflicts, artifact_count, started_at, duration_ms, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Title, string(r.Outcome), r.Steps, len(r.Open), len(r.Artifacts),
		r.StartedAt.UnixNano(), r.Duration.Milliseconds(), string(blob),
	); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, table := range []string{"artifacts", "conflicts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", r.SessionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for name, content := range r.Artifacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (session_id, name, content) VALUES (?, ?, ?)`,
			r.SessionID, name, content,
		); err != nil {
			return fmt.Errorf("failed to save artifact %s: %w", name, err)
		}
	}
	for _, c := range r.Conflicts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO conflicts (session_id, conflict_id, kind, source, severity, target, path, status, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionID, c.ID, string(c.Kind), c.Source, string(c.Severity), string(c.Target), c.Path, string(c.Status), c.Description,
		); err != nil {
			return fmt.Errorf("failed to save conflict %s: %w", c.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	logging.Get(logging.CategoryStore).Debug("Archived session %s (%d artifacts, %d conflicts)",
		r.SessionID, len(r.Artifacts), len(r.Conflicts))
	return nil
}

// List returns the most recent sessions first. limit <= 0 lists all.
func (a *Archive) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	q := `SELECT id, title, outcome, steps, open_conflicts, artifact_count, started_at, duration_ms
	      FROM sessions ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s          SessionSummary
			started    int64
			durationMs int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Outcome, &s.Steps, &s.OpenConflicts, &s.Artifacts, &started, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}

// Load returns the archived Result for id.
func (a *Archive) Load(ctx context.Context, id string) (orchestrator.Result, error) {
	var blob string
	err := a.db.QueryRowContext(ctx, `SELECT result_json FROM sessions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("failed to load session: %w", err)
	}
	var r orchestrator.Result
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return orchestrator.Result{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return r, nil
}

// ConflictCounts tallies archived conflicts by kind across every session.
func (a *Archive) ConflictCounts(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM conflicts GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count conflicts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
