package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/champschool/champdesk/internal/schema"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Remote is a Gateway backed by a hosted libSQL database.
//
// Remote tables use the same document layout as the mirror: the record ID
// as primary key and the domain attributes as a JSON column. Partial
// updates are applied server-side with json_patch so concurrent field
// updates from other consoles do not require a read-modify-write round
// trip.
type Remote struct {
	conn *sql.DB
}

// OpenRemote connects to the hosted database. The URL is a libSQL URL,
// e.g. "libsql://school-admin.turso.io?authToken=...".
func OpenRemote(url string) (*Remote, error) {
	conn, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(time.Minute)

	return &Remote{conn: conn}, nil
}

// Close releases the remote connection.
func (r *Remote) Close() error {
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	return nil
}

// Ping verifies the remote service is reachable.
func (r *Remote) Ping(ctx context.Context) error {
	if err := r.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("remote database unreachable: %w", err)
	}
	return nil
}

// InitSchema creates the remote tables if they do not exist. Only useful
// against a self-hosted instance; a managed deployment provisions these
// out of band.
func (r *Remote) InitSchema(ctx context.Context) error {
	for _, tbl := range schema.Tables {
		ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, tbl.Name)

		if _, err := r.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create remote table %s: %w", tbl.Name, err)
		}
	}
	return nil
}

// Insert implements Gateway. Upsert semantics keep retried creates
// idempotent.
func (r *Remote) Insert(ctx context.Context, table string, doc map[string]any) error {
	id, _ := doc["id"].(string)
	if id == "" {
		return fmt.Errorf("insert into %s: document has no id", table)
	}

	data, err := marshalDoc(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`, table)

	if _, err := r.conn.ExecContext(ctx, query, id, data, nowUTC()); err != nil {
		return fmt.Errorf("failed to insert record %s into remote %s: %w", id, table, err)
	}
	return nil
}

// Update implements Gateway.
func (r *Remote) Update(ctx context.Context, table, id string, partial map[string]any) error {
	patch, err := marshalDoc(partial)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET data = json_patch(data, ?), updated_at = ? WHERE id = ?`, table)

	res, err := r.conn.ExecContext(ctx, query, patch, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update record %s in remote %s: %w", id, table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update record %s in remote %s: record not found", id, table)
	}
	return nil
}

// Delete implements Gateway. Idempotent.
func (r *Remote) Delete(ctx context.Context, table, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := r.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete record %s from remote %s: %w", id, table, err)
	}
	return nil
}

// SelectAll implements Gateway.
func (r *Remote) SelectAll(ctx context.Context, table string) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT id, data FROM %s", table)

	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select remote %s: %w", table, err)
	}
	defer rows.Close()

	var docs []map[string]any
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan remote record: %w", err)
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode remote record %s: %w", id, err)
		}
		doc["id"] = id
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating remote %s: %w", table, err)
	}
	return docs, nil
}

func marshalDoc(doc map[string]any) (string, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		stripped[k] = v
	}

	data, err := json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(data), nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
