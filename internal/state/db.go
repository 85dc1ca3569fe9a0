// Package state provides the SQLite archive for finished scheduler work.
// Completed allocations and closed cycles are written once and read back
// for history reports; live scheduling state is never stored here.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with archive operations.
type DB struct {
	conn *sqlx.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the path to the user-level archive database.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "attention", "archive.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenDefault opens and migrates the archive at DefaultPath.
func OpenDefault() (*DB, error) {
	db, err := Open(DefaultPath())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	if err := db.conn.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Allocations},
		{2, migrationV2Cycles},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Allocations = `
CREATE TABLE IF NOT EXISTS allocations (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	type TEXT NOT NULL,
	scope TEXT NOT NULL,
	team TEXT NOT NULL,
	priority REAL NOT NULL,
	max_turns INTEGER NOT NULL,
	turns_used INTEGER NOT NULL,
	proposal_count INTEGER NOT NULL DEFAULT 0,
	stop_reason TEXT NOT NULL,
	summary TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_allocations_type ON allocations(type);
CREATE INDEX IF NOT EXISTS idx_allocations_completed_at ON allocations(completed_at);
`

const migrationV2Cycles = `
CREATE TABLE IF NOT EXISTS cycles (
	started_at TEXT PRIMARY KEY,
	ended_at TEXT NOT NULL,
	items_started INTEGER NOT NULL,
	turns_used INTEGER NOT NULL,
	proposals_emitted INTEGER NOT NULL,
	max_items INTEGER NOT NULL,
	max_turns_per_item INTEGER NOT NULL
);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Select runs a query and scans every row into dest.
func (db *DB) Select(dest any, query string, args ...any) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Select(dest, query, args...)
}

// formatTime formats a time.Time for SQLite storage. Fixed width keeps
// lexical order equal to time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// PurgeOlderThan deletes archived allocations and cycles that finished
// before now minus olderThan. Returns the number of rows deleted.
func (db *DB) PurgeOlderThan(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var total int64
	for _, q := range []string{
		"DELETE FROM allocations WHERE completed_at < ?",
		"DELETE FROM cycles WHERE ended_at < ?",
	} {
		result, err := db.Exec(q, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge archive: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}
