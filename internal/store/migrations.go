package store

import (
	"database/sql"
	"fmt"

	"forge/internal/logging"
)

// Migration adds a column that older archives lack.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations is applied in order on every Open.
var pendingMigrations = []Migration{
	{"sessions", "artifact_count", "INTEGER NOT NULL DEFAULT 0"},
}

func runMigrations(db *sql.DB) error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		has, err := columnExists(db, m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s.%s: %w", m.Table, m.Column, err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		applied++
	}
	if applied > 0 {
		logging.Get(logging.CategoryStore).Info("Applied %d schema migration(s)", applied)
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
