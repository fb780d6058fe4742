package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Row is one mirrored record: the domain document plus its sync provenance.
type Row struct {
	ID     string
	Fields map[string]any

	LocallyCreated  bool
	LocallyUpdated  bool
	LocallyDeleted  bool
	SyncPending     bool
	LastSyncAttempt time.Time
	SyncAttempts    int
}

// Document returns the domain attributes with the record ID folded in,
// the shape the remote gateway expects for an insert.
func (r *Row) Document() map[string]any {
	doc := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc["id"] = r.ID
	return doc
}

const rowColumns = `id, data, locally_created, locally_updated, locally_deleted,
       sync_pending, last_sync_attempt, sync_attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (*Row, error) {
	var (
		row      Row
		data     string
		created  int
		updated  int
		deleted  int
		pending  int
		lastSync sql.NullString
	)

	err := s.Scan(&row.ID, &data, &created, &updated, &deleted,
		&pending, &lastSync, &row.SyncAttempts)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &row.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", row.ID, err)
	}
	delete(row.Fields, "id")

	row.LocallyCreated = created != 0
	row.LocallyUpdated = updated != 0
	row.LocallyDeleted = deleted != 0
	row.SyncPending = pending != 0
	if lastSync.Valid {
		if t, err := time.Parse(time.RFC3339, lastSync.String); err == nil {
			row.LastSyncAttempt = t
		}
	}

	return &row, nil
}

func scanRows(rows *sql.Rows) ([]*Row, error) {
	var out []*Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return out, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func encodeFields(fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode record document: %w", err)
	}
	return string(data), nil
}
