package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/champschool/champdesk/internal/schema"
)

// Get retrieves a single record by ID. Returns ErrNotFound if missing.
func (st *Store) Get(ctx context.Context, table, id string) (*Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", rowColumns, table)
	row, err := scanRow(st.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s in %s: %w", id, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s from %s: %w", id, table, err)
	}
	return row, nil
}

// List returns all records of a table, newest first, excluding records
// already marked for deletion.
func (st *Store) List(ctx context.Context, table string) ([]*Row, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM %s
	WHERE locally_deleted = 0
	ORDER BY json_extract(data, '$.created_at') DESC`, rowColumns, table)

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListAll returns every record of a table including rows marked for
// deletion, ordered by id. Exports use this so pending tombstones survive
// a backup and restore.
func (st *Store) ListAll(ctx context.Context, table string) ([]*Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", rowColumns, table)

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListByField returns records whose document field equals the given value.
// The field should be one of the table's registered keys so the expression
// index is used.
func (st *Store) ListByField(ctx context.Context, table, field string, value any) ([]*Row, error) {
	if !validField(table, field) {
		return nil, fmt.Errorf("field %q is not indexed on %s", field, table)
	}

	query := fmt.Sprintf(`
	SELECT %s FROM %s
	WHERE locally_deleted = 0 AND json_extract(data, '$.%s') = ?
	ORDER BY json_extract(data, '$.created_at') DESC`, rowColumns, table, field)

	rows, err := st.conn.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s by %s: %w", table, field, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListPending returns every record with an unacknowledged local write,
// oldest attempt first so stuck records go out ahead of fresh ones.
func (st *Store) ListPending(ctx context.Context, table string) ([]*Row, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM %s
	WHERE sync_pending = 1
	ORDER BY last_sync_attempt ASC`, rowColumns, table)

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// PendingIDs returns the set of pending record IDs for a table. The
// reconciliation engine recomputes this immediately before merging each
// pull so a write racing the cycle is still protected.
func (st *Store) PendingIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE sync_pending = 1", table)

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending ids for %s: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending ids: %w", err)
	}
	return ids, nil
}

// PendingCount sums sync_pending records across all entity tables. This is
// the number the status broadcaster reports.
func (st *Store) PendingCount(ctx context.Context) (int, error) {
	parts := make([]string, len(schema.Tables))
	for i, tbl := range schema.Tables {
		parts[i] = fmt.Sprintf("SELECT COUNT(*) AS n FROM %s WHERE sync_pending = 1", tbl.Name)
	}
	query := "SELECT SUM(n) FROM (" + strings.Join(parts, " UNION ALL ") + ")"

	var count sql.NullInt64
	if err := st.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return int(count.Int64), nil
}

// PendingCountTable counts sync_pending records in a single table.
func (st *Store) PendingCountTable(ctx context.Context, table string) (int, error) {
	if !validTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sync_pending = 1", table)
	if err := st.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending in %s: %w", table, err)
	}
	return count, nil
}

// Count returns the number of records in a table.
func (st *Store) Count(ctx context.Context, table string) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := st.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// ApplyRemote bulk-upserts records pulled from the remote service, stamping
// them acknowledged (sync_pending = 0). Callers must have filtered out
// locally-pending IDs first; this function enforces it again at the SQL
// level so a pull can never clobber a record inside its local-wins window.
//
// The whole batch runs in one transaction as a single prepared upsert,
// which is what keeps full-table hydration cheap.
func (st *Store) ApplyRemote(ctx context.Context, table string, docs []map[string]any) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
	INSERT INTO %[1]s (id, data, sync_pending, last_sync_attempt)
	VALUES (?, ?, 0, ?)
	ON CONFLICT(id) DO UPDATE SET
		data = excluded.data,
		sync_pending = 0,
		last_sync_attempt = excluded.last_sync_attempt
	WHERE %[1]s.sync_pending = 0`, table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert for %s: %w", table, err)
	}
	defer stmt.Close()

	now := nowRFC3339()
	applied := 0
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			return applied, fmt.Errorf("remote record in %s has no id", table)
		}

		data, err := encodeFields(cloneFields(doc))
		if err != nil {
			return applied, err
		}

		if _, err := stmt.ExecContext(ctx, id, data, now); err != nil {
			return applied, fmt.Errorf("failed to upsert record %s into %s: %w", id, table, err)
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit pull for %s: %w", table, err)
	}
	return applied, nil
}

// RestoreRow writes a record back verbatim, provenance included. Used by
// the JSONL import path; normal code goes through the tracker.
func (st *Store) RestoreRow(ctx context.Context, table string, row *Row) error {
	data, err := encodeFields(row.Fields)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	INSERT OR REPLACE INTO %s
		(id, data, locally_created, locally_updated, locally_deleted,
		 sync_pending, last_sync_attempt, sync_attempts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table)

	var lastSync any
	if !row.LastSyncAttempt.IsZero() {
		lastSync = row.LastSyncAttempt.UTC().Format(time.RFC3339)
	}

	_, err = st.conn.ExecContext(ctx, query, row.ID, data,
		boolToInt(row.LocallyCreated), boolToInt(row.LocallyUpdated),
		boolToInt(row.LocallyDeleted), boolToInt(row.SyncPending),
		lastSync, row.SyncAttempts)
	if err != nil {
		return fmt.Errorf("failed to restore record %s into %s: %w", row.ID, table, err)
	}
	return nil
}

func validTable(table string) bool {
	_, err := schema.TableByName(table)
	return err == nil
}

func validField(table, field string) bool {
	tbl, err := schema.TableByName(table)
	if err != nil {
		return false
	}
	for _, key := range tbl.Keys {
		if key == field {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
