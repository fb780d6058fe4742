package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const lastSyncKey = "last_sync"

// LastSync returns the process-wide last-successful-sync timestamp. The
// second return is false if no cycle has ever completed cleanly.
func (st *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := st.conn.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", lastSyncKey).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last sync: %w", err)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last sync %q: %w", value, err)
	}
	return t, true, nil
}

// SetLastSync stamps the process-wide last-successful-sync timestamp.
func (st *Store) SetLastSync(ctx context.Context, t time.Time) error {
	query := `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := st.conn.ExecContext(ctx, query, lastSyncKey, t.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	return nil
}
