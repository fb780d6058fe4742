package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/champschool/champdesk/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return st
}

func TestExportImport_RoundTripPreservesSyncFlags(t *testing.T) {
	src := openTestStore(t)
	ctx := context.Background()

	if _, err := src.CreateLocal(ctx, "students", "s1", map[string]any{"name": "Amina"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := src.CreateLocal(ctx, "teachers", "t1", map[string]any{"name": "Okafor"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := src.MarkSynced(ctx, "teachers", "t1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if _, err := src.MarkDeleted(ctx, "students", "s1"); err != nil {
		t.Fatalf("MarkDeleted() failed: %v", err)
	}

	var buf bytes.Buffer
	result, err := ToJSONL(ctx, src, &buf)
	if err != nil {
		t.Fatalf("ToJSONL() failed: %v", err)
	}
	if result.Records != 2 {
		t.Errorf("exported %d records, want 2", result.Records)
	}

	dst := openTestStore(t)
	imported, err := FromJSONL(ctx, dst, &buf)
	if err != nil {
		t.Fatalf("FromJSONL() failed: %v", err)
	}
	if imported.Records != 2 {
		t.Errorf("imported %d records, want 2", imported.Records)
	}

	// The pending tombstone survived the round trip.
	row, err := dst.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !row.LocallyDeleted || !row.SyncPending {
		t.Errorf("flags = deleted:%v pending:%v, want both true",
			row.LocallyDeleted, row.SyncPending)
	}

	// The acknowledged record stayed acknowledged.
	row, err = dst.Get(ctx, "teachers", "t1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if row.SyncPending {
		t.Error("acknowledged record imported as pending")
	}
	if row.Fields["name"] != "Okafor" {
		t.Errorf("name = %v, want Okafor", row.Fields["name"])
	}
}

func TestToFile_FromFile(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "staff", "x1", map[string]any{"name": "Guard"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "backups", "mirror.jsonl")
	if _, err := ToFile(ctx, st, path); err != nil {
		t.Fatalf("ToFile() failed: %v", err)
	}

	dst := openTestStore(t)
	result, err := FromFile(ctx, dst, path)
	if err != nil {
		t.Fatalf("FromFile() failed: %v", err)
	}
	if result.Tables["staff"] != 1 {
		t.Errorf("imported %d staff records, want 1", result.Tables["staff"])
	}
}

func TestFromJSONL_RejectsBadRecords(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cases := map[string]string{
		"unknown table": `{"table":"no_such","id":"x","doc":{}}`,
		"missing id":    `{"table":"students","doc":{}}`,
		"broken json":   `{"table":"students",`,
	}
	for name, line := range cases {
		if _, err := FromJSONL(ctx, st, strings.NewReader(line)); err == nil {
			t.Errorf("%s: FromJSONL() succeeded, want error", name)
		}
	}
}

func TestFromJSONL_EmptyInput(t *testing.T) {
	st := openTestStore(t)
	result, err := FromJSONL(context.Background(), st, strings.NewReader(""))
	if err != nil {
		t.Fatalf("FromJSONL() on empty input failed: %v", err)
	}
	if result.Records != 0 {
		t.Errorf("imported %d records from empty input, want 0", result.Records)
	}
}
