package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The tracker is the sole local-write path into the mirror. Every mutation
// stamps the provenance columns and appends a change intent in the same
// transaction, so no local write can leave a record untracked.

// CreateLocal inserts a locally-created record and marks it pending.
func (st *Store) CreateLocal(ctx context.Context, table, id string, fields map[string]any) (*Row, error) {
	if id == "" {
		return nil, fmt.Errorf("record id is required")
	}

	doc := cloneFields(fields)
	now := time.Now().UTC()
	data, err := encodeFields(doc)
	if err != nil {
		return nil, err
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
	INSERT INTO %s (id, data, locally_created, sync_pending, last_sync_attempt)
	VALUES (?, ?, 1, 1, ?)`, table)

	if _, err := tx.ExecContext(ctx, query, id, data, now.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to insert record %s into %s: %w", id, table, err)
	}

	if err := appendIntent(ctx, tx, table, id, OpCreate, data, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit create: %w", err)
	}

	return &Row{
		ID:              id,
		Fields:          doc,
		LocallyCreated:  true,
		SyncPending:     true,
		LastSyncAttempt: now,
	}, nil
}

// UpdateLocal merges partial fields into an existing record and marks it
// pending. Merge semantics: only the given keys are replaced. The
// locally_created flag is deliberately left alone so a record can be both
// "created offline" and "edited offline".
func (st *Store) UpdateLocal(ctx context.Context, table, id string, partial map[string]any) (*Row, error) {
	now := time.Now().UTC()

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getRowTx(ctx, tx, table, id)
	if err != nil {
		return nil, err
	}

	for k, v := range partial {
		if k == "id" {
			continue
		}
		current.Fields[k] = v
	}
	current.Fields["updated_at"] = now.Format(time.RFC3339)

	data, err := encodeFields(current.Fields)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET data = ?, locally_updated = 1, sync_pending = 1, last_sync_attempt = ?
	WHERE id = ?`, table)

	if _, err := tx.ExecContext(ctx, query, data, now.Format(time.RFC3339), id); err != nil {
		return nil, fmt.Errorf("failed to update record %s in %s: %w", id, table, err)
	}

	if err := appendIntent(ctx, tx, table, id, OpUpdate, data, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	current.LocallyUpdated = true
	current.SyncPending = true
	current.LastSyncAttempt = now
	return current, nil
}

// MarkDeleted flags a record for remote deletion. The record stays in the
// mirror until the remote delete is confirmed, then Purge removes it.
func (st *Store) MarkDeleted(ctx context.Context, table, id string) (*Row, error) {
	now := time.Now().UTC()

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getRowTx(ctx, tx, table, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET locally_deleted = 1, sync_pending = 1, last_sync_attempt = ?
	WHERE id = ?`, table)

	if _, err := tx.ExecContext(ctx, query, now.Format(time.RFC3339), id); err != nil {
		return nil, fmt.Errorf("failed to mark record %s deleted in %s: %w", id, table, err)
	}

	if err := appendIntent(ctx, tx, table, id, OpDelete, "{}", now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete mark: %w", err)
	}

	current.LocallyDeleted = true
	current.SyncPending = true
	current.LastSyncAttempt = now
	return current, nil
}

// MarkSynced clears sync_pending and stamps last_sync_attempt after the
// remote service acknowledged the record. The provenance flags are kept as
// audit history; only sync_pending gates pull overwrites.
func (st *Store) MarkSynced(ctx context.Context, table, id string) error {
	query := fmt.Sprintf(`
	UPDATE %s SET sync_pending = 0, sync_attempts = 0, last_sync_attempt = ?
	WHERE id = ?`, table)

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := st.conn.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark record %s synced in %s: %w", id, table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark synced %s in %s: %w", id, table, ErrNotFound)
	}
	return nil
}

// Purge hard-deletes a record from the mirror. Only called after a
// confirmed remote delete. Idempotent.
func (st *Store) Purge(ctx context.Context, table, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := st.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to purge record %s from %s: %w", id, table, err)
	}
	return nil
}

// BumpAttempt increments the failed-push counter and stamps the attempt
// time. The record stays pending and is retried on a later cycle.
func (st *Store) BumpAttempt(ctx context.Context, table, id string) error {
	query := fmt.Sprintf(`
	UPDATE %s SET sync_attempts = sync_attempts + 1, last_sync_attempt = ?
	WHERE id = ?`, table)

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := st.conn.ExecContext(ctx, query, now, id); err != nil {
		return fmt.Errorf("failed to bump attempt for %s in %s: %w", id, table, err)
	}
	return nil
}

func getRowTx(ctx context.Context, tx *sql.Tx, table, id string) (*Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", rowColumns, table)
	row, err := scanRow(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s in %s: %w", id, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s from %s: %w", id, table, err)
	}
	return row, nil
}

func cloneFields(fields map[string]any) map[string]any {
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	return doc
}
