package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/champschool/champdesk/internal/schema"
)

// Change-intent operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Intent is one entry of the durable change-intent log. The log is
// bookkeeping written alongside every local mutation; the reconciliation
// engine derives its work from the per-record sync_pending flags, not from
// this table, and prunes acknowledged entries after a clean cycle.
type Intent struct {
	ID         int64
	Table      string
	RecordID   string
	Operation  string
	Snapshot   string
	QueuedAt   time.Time
	RetryCount int
}

func appendIntent(ctx context.Context, tx *sql.Tx, table, recordID, op, snapshot string, now time.Time) error {
	query := `
	INSERT INTO change_log (table_name, record_id, operation, snapshot, queued_at)
	VALUES (?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, query, table, recordID, op, snapshot, now.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to append change intent for %s/%s: %w", table, recordID, err)
	}
	return nil
}

// ListIntents returns the change-intent log in queue order.
func (st *Store) ListIntents(ctx context.Context) ([]Intent, error) {
	query := `
	SELECT id, table_name, record_id, operation, snapshot, queued_at, retry_count
	FROM change_log
	ORDER BY queued_at ASC, id ASC`

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list change intents: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		var (
			in       Intent
			queuedAt string
		)
		if err := rows.Scan(&in.ID, &in.Table, &in.RecordID, &in.Operation,
			&in.Snapshot, &queuedAt, &in.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan change intent: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, queuedAt); err == nil {
			in.QueuedAt = t
		}
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change intents: %w", err)
	}
	return intents, nil
}

// PruneAcknowledged drops intents whose record is no longer pending: the
// record was either acknowledged by the remote service or purged after a
// confirmed delete. Keeps the log bounded without ever dropping an intent
// for a record that still has unconfirmed local state.
func (st *Store) PruneAcknowledged(ctx context.Context) (int, error) {
	pruned := 0
	for _, tbl := range schema.Tables {
		query := fmt.Sprintf(`
		DELETE FROM change_log
		WHERE table_name = ?
		  AND record_id NOT IN (SELECT id FROM %s WHERE sync_pending = 1)`, tbl.Name)

		res, err := st.conn.ExecContext(ctx, query, tbl.Name)
		if err != nil {
			return pruned, fmt.Errorf("failed to prune change intents for %s: %w", tbl.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			pruned += int(n)
		}
	}
	return pruned, nil
}
