package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/champschool/champdesk/internal/schema"
	"github.com/champschool/champdesk/internal/store"
	"github.com/google/uuid"
)

// Repo provides the per-entity list/create/update/delete operations. T is
// the entity struct (schema.Student, ...); PT is its pointer, which
// carries the Entity methods.
type Repo[T any, PT interface {
	*T
	schema.Entity
}] struct {
	svc   *Service
	table schema.Table
}

// NewRepo creates a repository bound to one entity table.
func NewRepo[T any, PT interface {
	*T
	schema.Entity
}](svc *Service, table string) (*Repo[T, PT], error) {
	tbl, err := schema.TableByName(table)
	if err != nil {
		return nil, err
	}
	return &Repo[T, PT]{svc: svc, table: tbl}, nil
}

// List returns all records. Online (unless the read mode prefers offline)
// it fetches from the remote service and silently falls back to the
// mirror on any error; the mirror is the safety net, so a remote read
// failure never surfaces to the caller.
func (r *Repo[T, PT]) List(ctx context.Context) ([]PT, error) {
	if r.svc.remoteReadable() {
		docs, err := r.svc.gw.SelectAll(ctx, r.table.Name)
		if err == nil {
			return r.decodeDocs(docs)
		}
		r.svc.logger.Printf("Remote read of %s failed, answering from mirror: %v",
			r.table.Name, err)
	}
	return r.listLocal(ctx)
}

// ListBy returns records whose indexed field equals value, answered from
// the mirror.
func (r *Repo[T, PT]) ListBy(ctx context.Context, field string, value any) ([]PT, error) {
	rows, err := r.svc.store.ListByField(ctx, r.table.Name, field, value)
	if err != nil {
		return nil, err
	}
	return r.decodeRows(rows)
}

// Get returns one record from the mirror.
func (r *Repo[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	row, err := r.svc.store.Get(ctx, r.table.Name, id)
	if err != nil {
		return nil, err
	}
	return r.decodeRow(row)
}

// Create validates and writes a record to the mirror, assigning a
// client-side UUID if none is set, then opportunistically pushes it to
// the remote service. The returned record reflects the resulting pending
// state.
func (r *Repo[T, PT]) Create(ctx context.Context, rec PT) (PT, error) {
	if err := r.svc.validate.Struct(rec); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", r.table.Name, err)
	}

	if rec.GetID() == "" {
		rec.SetID(uuid.NewString())
	}

	doc, err := encodeEntity(rec)
	if err != nil {
		return nil, err
	}
	now := schema.Timestamp(time.Now())
	if v, _ := doc["created_at"].(string); v == "" {
		doc["created_at"] = now
	}
	doc["updated_at"] = now

	row, err := r.svc.store.CreateLocal(ctx, r.table.Name, rec.GetID(), doc)
	if err != nil {
		return nil, err
	}

	if r.svc.remoteWritable() {
		if err := r.svc.gw.Insert(ctx, r.table.Name, row.Document()); err != nil {
			r.svc.logger.Printf("Immediate push of %s/%s failed, left pending: %v",
				r.table.Name, row.ID, err)
		} else if err := r.svc.store.MarkSynced(ctx, r.table.Name, row.ID); err != nil {
			return nil, err
		} else {
			row.SyncPending = false
		}
	}

	return r.decodeRow(row)
}

// Update merges partial fields into the mirror record, then
// opportunistically pushes the change.
func (r *Repo[T, PT]) Update(ctx context.Context, id string, partial map[string]any) (PT, error) {
	row, err := r.svc.store.UpdateLocal(ctx, r.table.Name, id, partial)
	if err != nil {
		return nil, err
	}

	if r.svc.remoteWritable() {
		remote := make(map[string]any, len(partial)+1)
		for k, v := range partial {
			if k == "id" {
				continue
			}
			remote[k] = v
		}
		remote["updated_at"] = row.Fields["updated_at"]

		if err := r.svc.gw.Update(ctx, r.table.Name, id, remote); err != nil {
			r.svc.logger.Printf("Immediate push of %s/%s failed, left pending: %v",
				r.table.Name, id, err)
		} else if err := r.svc.store.MarkSynced(ctx, r.table.Name, id); err != nil {
			return nil, err
		} else {
			row.SyncPending = false
		}
	}

	return r.decodeRow(row)
}

// Delete marks the record for remote deletion, then opportunistically
// deletes it remotely; on confirmation the record is purged from the
// mirror entirely.
func (r *Repo[T, PT]) Delete(ctx context.Context, id string) error {
	if _, err := r.svc.store.MarkDeleted(ctx, r.table.Name, id); err != nil {
		return err
	}

	if r.svc.remoteWritable() {
		if err := r.svc.gw.Delete(ctx, r.table.Name, id); err != nil {
			r.svc.logger.Printf("Immediate delete of %s/%s failed, left pending: %v",
				r.table.Name, id, err)
			return nil
		}
		return r.svc.store.Purge(ctx, r.table.Name, id)
	}

	return nil
}

func (r *Repo[T, PT]) listLocal(ctx context.Context) ([]PT, error) {
	rows, err := r.svc.store.List(ctx, r.table.Name)
	if err != nil {
		return nil, err
	}
	return r.decodeRows(rows)
}

func (r *Repo[T, PT]) decodeRows(rows []*store.Row) ([]PT, error) {
	out := make([]PT, 0, len(rows))
	for _, row := range rows {
		rec, err := r.decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repo[T, PT]) decodeRow(row *store.Row) (PT, error) {
	rec, err := decodeDoc[T, PT](row.Document())
	if err != nil {
		return nil, err
	}

	meta := rec.SyncState()
	meta.LocallyCreated = row.LocallyCreated
	meta.LocallyUpdated = row.LocallyUpdated
	meta.LocallyDeleted = row.LocallyDeleted
	meta.SyncPending = row.SyncPending
	meta.LastSyncAttempt = row.LastSyncAttempt
	meta.SyncAttempts = row.SyncAttempts
	return rec, nil
}

// decodeDocs converts remote documents, newest first to match mirror
// ordering. Remote records are acknowledged by definition.
func (r *Repo[T, PT]) decodeDocs(docs []map[string]any) ([]PT, error) {
	sort.Slice(docs, func(i, j int) bool {
		a, _ := docs[i]["created_at"].(string)
		b, _ := docs[j]["created_at"].(string)
		return a > b
	})

	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeDoc[T, PT](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeEntity[PT schema.Entity](rec PT) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record document: %w", err)
	}
	return doc, nil
}

func decodeDoc[T any, PT interface {
	*T
	schema.Entity
}](doc map[string]any) (PT, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var rec T
	pt := PT(&rec)
	if err := json.Unmarshal(data, pt); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return pt, nil
}
