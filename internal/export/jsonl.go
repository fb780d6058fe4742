// Package export writes the local mirror to a JSONL backup file and
// restores one. Each line is a self-describing record carrying its table
// name, document, and sync flags, so a restore reproduces pending local
// changes as well as clean data.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/champschool/champdesk/internal/schema"
	"github.com/champschool/champdesk/internal/store"
)

// Record is one JSONL line.
type Record struct {
	Table           string         `json:"table"`
	ID              string         `json:"id"`
	Doc             map[string]any `json:"doc"`
	LocallyCreated  bool           `json:"locally_created,omitempty"`
	LocallyUpdated  bool           `json:"locally_updated,omitempty"`
	LocallyDeleted  bool           `json:"locally_deleted,omitempty"`
	SyncPending     bool           `json:"sync_pending,omitempty"`
	LastSyncAttempt *time.Time     `json:"last_sync_attempt,omitempty"`
	SyncAttempts    int            `json:"sync_attempts,omitempty"`
}

// Result contains statistics about an export or import run.
type Result struct {
	Records int
	Tables  map[string]int
}

// ToJSONL writes every table in the mirror to w, one record per line,
// tables in registry order.
func ToJSONL(ctx context.Context, st *store.Store, w io.Writer) (*Result, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	result := &Result{Tables: make(map[string]int)}

	for _, tbl := range schema.Tables {
		rows, err := st.ListAll(ctx, tbl.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", tbl.Name, err)
		}

		for _, row := range rows {
			rec := Record{
				Table:          tbl.Name,
				ID:             row.ID,
				Doc:            row.Fields,
				LocallyCreated: row.LocallyCreated,
				LocallyUpdated: row.LocallyUpdated,
				LocallyDeleted: row.LocallyDeleted,
				SyncPending:    row.SyncPending,
				SyncAttempts:   row.SyncAttempts,
			}
			if !row.LastSyncAttempt.IsZero() {
				t := row.LastSyncAttempt
				rec.LastSyncAttempt = &t
			}

			if err := enc.Encode(rec); err != nil {
				return nil, fmt.Errorf("failed to encode %s/%s: %w", tbl.Name, row.ID, err)
			}
			result.Records++
			result.Tables[tbl.Name]++
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}
	return result, nil
}

// ToFile exports the mirror to a JSONL file, creating parent directories
// as needed.
func ToFile(ctx context.Context, st *store.Store, path string) (*Result, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}

	result, err := ToJSONL(ctx, st, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close export file: %w", err)
	}
	return result, nil
}

// FromJSONL reads records from r and restores them into the mirror,
// overwriting rows with the same id. Sync flags are restored verbatim so
// pending changes picked up from a backup still push on the next cycle.
func FromJSONL(ctx context.Context, st *store.Store, r io.Reader) (*Result, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	result := &Result{Tables: make(map[string]int)}

	lineNum := 0
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("invalid JSON at record %d: %w", lineNum+1, err)
		}
		lineNum++

		if rec.ID == "" {
			return nil, fmt.Errorf("record %d has no id", lineNum)
		}
		if _, err := schema.TableByName(rec.Table); err != nil {
			return nil, fmt.Errorf("record %d: %w", lineNum, err)
		}

		if rec.Doc == nil {
			rec.Doc = map[string]any{}
		}

		row := &store.Row{
			ID:             rec.ID,
			Fields:         rec.Doc,
			LocallyCreated: rec.LocallyCreated,
			LocallyUpdated: rec.LocallyUpdated,
			LocallyDeleted: rec.LocallyDeleted,
			SyncPending:    rec.SyncPending,
			SyncAttempts:   rec.SyncAttempts,
		}
		if rec.LastSyncAttempt != nil {
			row.LastSyncAttempt = *rec.LastSyncAttempt
		}

		if err := st.RestoreRow(ctx, rec.Table, row); err != nil {
			return nil, fmt.Errorf("failed to restore record %d (%s/%s): %w", lineNum, rec.Table, rec.ID, err)
		}
		result.Records++
		result.Tables[rec.Table]++
	}

	return result, nil
}

// FromFile imports a JSONL backup file into the mirror.
func FromFile(ctx context.Context, st *store.Store, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	return FromJSONL(ctx, st, f)
}
