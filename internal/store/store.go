// Package store implements the local mirror: an embedded SQLite copy of
// every hosted-database table, plus the change-intent log and a small
// key-value area for process-wide sync state.
//
// The database runs in embedded mode with WAL for concurrent reads. Every
// entity table shares one layout: the record ID, the domain attributes as a
// JSON document, and the sync-provenance columns the reconciliation engine
// keys on. Equality scans on foreign keys go through expression indexes over
// json_extract.
//
// All local mutations go through the tracker (tracker.go), which is the only
// code allowed to touch the provenance columns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/champschool/champdesk/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a point lookup misses.
var ErrNotFound = errors.New("record not found")

// Store wraps the mirror database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the mirror database at the given path.
//
// The parent directory is created if needed. The caller MUST call Close
// when done so the WAL is checkpointed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping mirror database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := st.conn.Exec(pragma); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
func (st *Store) RawDB() *sql.DB {
	return st.conn
}

// Path returns the database file path.
func (st *Store) Path() string {
	return st.path
}

// Close checkpoints the WAL and closes the connection.
func (st *Store) Close() error {
	if st.conn == nil {
		return nil
	}

	if _, err := st.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("failed to close mirror database: %w", err)
	}

	st.conn = nil
	return nil
}

// InitSchema creates all mirror tables and indexes. Idempotent.
func (st *Store) InitSchema(ctx context.Context) error {
	for _, tbl := range schema.Tables {
		ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			locally_created INTEGER NOT NULL DEFAULT 0,
			locally_updated INTEGER NOT NULL DEFAULT 0,
			locally_deleted INTEGER NOT NULL DEFAULT 0,
			sync_pending INTEGER NOT NULL DEFAULT 0,
			last_sync_attempt TEXT,
			sync_attempts INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_pending
		    ON %[1]s(sync_pending);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created
		    ON %[1]s(json_extract(data, '$.created_at'));
		`, tbl.Name)

		for _, key := range tbl.Keys {
			ddl += fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%[1]s_%[2]s
		    ON %[1]s(json_extract(data, '$.%[2]s'));
			`, tbl.Name, key)
		}

		if _, err := st.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tbl.Name, err)
		}
	}

	aux := `
	CREATE TABLE IF NOT EXISTS change_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		queued_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_change_log_record
	    ON change_log(table_name, record_id);
	CREATE INDEX IF NOT EXISTS idx_change_log_queued
	    ON change_log(queued_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := st.conn.ExecContext(ctx, aux); err != nil {
		return fmt.Errorf("failed to create auxiliary tables: %w", err)
	}

	return nil
}
