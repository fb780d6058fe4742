package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", s, err)
	}
	return ts
}

// openTestStore creates a fresh mirror in a temp directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return st
}

func TestInitSchema_CreatesAllTables(t *testing.T) {
	st := openTestStore(t)

	want := []string{
		"students", "teachers", "staff", "fee_payments",
		"attendance_records", "salary_payments", "staff_salary_payments",
		"change_log", "meta",
	}
	for _, table := range want {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := st.RawDB().QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	st := openTestStore(t)
	if err := st.InitSchema(context.Background()); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

func TestCreateLocal_StampsProvenance(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	row, err := st.CreateLocal(ctx, "students", "s1", map[string]any{
		"name":  "Amina Yusuf",
		"class": "P4",
	})
	if err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	if !row.LocallyCreated {
		t.Error("LocallyCreated = false, want true")
	}
	if !row.SyncPending {
		t.Error("SyncPending = false, want true")
	}

	got, err := st.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Fields["name"] != "Amina Yusuf" {
		t.Errorf("name = %v, want Amina Yusuf", got.Fields["name"])
	}
	if !got.SyncPending {
		t.Error("persisted SyncPending = false, want true")
	}
}

func TestCreateLocal_RejectsEmptyID(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.CreateLocal(context.Background(), "students", "", nil); err == nil {
		t.Fatal("CreateLocal() with empty id succeeded, want error")
	}
}

func TestCreateLocal_DuplicateIDFails(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "B"}); err == nil {
		t.Fatal("duplicate CreateLocal() succeeded, want error")
	}
}

func TestUpdateLocal_MergesPartialFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{
		"name":  "Amina Yusuf",
		"class": "P4",
	}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	row, err := st.UpdateLocal(ctx, "students", "s1", map[string]any{"class": "P5"})
	if err != nil {
		t.Fatalf("UpdateLocal() failed: %v", err)
	}

	if row.Fields["class"] != "P5" {
		t.Errorf("class = %v, want P5", row.Fields["class"])
	}
	if row.Fields["name"] != "Amina Yusuf" {
		t.Errorf("name = %v, want it untouched by partial update", row.Fields["name"])
	}
	if _, ok := row.Fields["updated_at"]; !ok {
		t.Error("updated_at not stamped on update")
	}
	if !row.LocallyCreated || !row.LocallyUpdated {
		t.Errorf("provenance = created:%v updated:%v, want both true", row.LocallyCreated, row.LocallyUpdated)
	}
}

func TestUpdateLocal_MissingRecord(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.UpdateLocal(context.Background(), "students", "nope", map[string]any{"class": "P5"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateLocal() error = %v, want ErrNotFound", err)
	}
}

func TestMarkDeleted_HidesFromListKeepsRecord(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	row, err := st.MarkDeleted(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("MarkDeleted() failed: %v", err)
	}
	if !row.LocallyDeleted || !row.SyncPending {
		t.Errorf("flags = deleted:%v pending:%v, want both true", row.LocallyDeleted, row.SyncPending)
	}

	rows, err := st.List(ctx, "students")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("List() returned %d rows, want 0 after delete mark", len(rows))
	}

	// The tombstone is still readable directly so the push phase can see it.
	got, err := st.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get() after MarkDeleted failed: %v", err)
	}
	if !got.LocallyDeleted {
		t.Error("persisted LocallyDeleted = false, want true")
	}
}

func TestMarkSynced_ClearsPendingKeepsProvenance(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := st.BumpAttempt(ctx, "students", "s1"); err != nil {
		t.Fatalf("BumpAttempt() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, "students", "s1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	got, err := st.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.SyncPending {
		t.Error("SyncPending = true after MarkSynced, want false")
	}
	if got.SyncAttempts != 0 {
		t.Errorf("SyncAttempts = %d after MarkSynced, want 0", got.SyncAttempts)
	}
	if !got.LocallyCreated {
		t.Error("LocallyCreated cleared by MarkSynced, want kept")
	}
}

func TestMarkSynced_MissingRecord(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkSynced(context.Background(), "students", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkSynced() error = %v, want ErrNotFound", err)
	}
}

func TestPurge_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := st.Purge(ctx, "students", "s1"); err != nil {
		t.Fatalf("Purge() failed: %v", err)
	}
	if err := st.Purge(ctx, "students", "s1"); err != nil {
		t.Errorf("second Purge() failed: %v", err)
	}
	if _, err := st.Get(ctx, "students", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after purge error = %v, want ErrNotFound", err)
	}
}

func TestListByField_UsesIndexedKey(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i, class := range []string{"P4", "P5", "P4"} {
		id := string(rune('a' + i))
		if _, err := st.CreateLocal(ctx, "students", id, map[string]any{"class": class}); err != nil {
			t.Fatalf("CreateLocal() failed: %v", err)
		}
	}

	rows, err := st.ListByField(ctx, "students", "class", "P4")
	if err != nil {
		t.Fatalf("ListByField() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("ListByField(class=P4) returned %d rows, want 2", len(rows))
	}

	if _, err := st.ListByField(ctx, "students", "not_a_key", "x"); err == nil {
		t.Error("ListByField() with unindexed field succeeded, want error")
	}
}

func TestPendingQueries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := st.CreateLocal(ctx, "teachers", "t1", map[string]any{"name": "B"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, "teachers", "t1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	count, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want 1", count)
	}

	ids, err := st.PendingIDs(ctx, "students")
	if err != nil {
		t.Fatalf("PendingIDs() failed: %v", err)
	}
	if _, ok := ids["s1"]; !ok || len(ids) != 1 {
		t.Errorf("PendingIDs(students) = %v, want {s1}", ids)
	}

	pending, err := st.ListPending(ctx, "teachers")
	if err != nil {
		t.Fatalf("ListPending() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPending(teachers) returned %d rows, want 0", len(pending))
	}
}

func TestApplyRemote_InsertsAndSkipsPending(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// A record with a pending local edit must survive the pull unchanged.
	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "Local Name"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	applied, err := st.ApplyRemote(ctx, "students", []map[string]any{
		{"id": "s1", "name": "Remote Name"},
		{"id": "s2", "name": "New Remote"},
	})
	if err != nil {
		t.Fatalf("ApplyRemote() failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("ApplyRemote() applied = %d, want 2", applied)
	}

	local, err := st.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get(s1) failed: %v", err)
	}
	if local.Fields["name"] != "Local Name" {
		t.Errorf("pending record overwritten by pull: name = %v", local.Fields["name"])
	}
	if !local.SyncPending {
		t.Error("pending record lost its sync_pending flag during pull")
	}

	remote, err := st.Get(ctx, "students", "s2")
	if err != nil {
		t.Fatalf("Get(s2) failed: %v", err)
	}
	if remote.Fields["name"] != "New Remote" {
		t.Errorf("pulled record name = %v, want New Remote", remote.Fields["name"])
	}
	if remote.SyncPending {
		t.Error("pulled record marked pending, want acknowledged")
	}
}

func TestApplyRemote_OverwritesAcknowledged(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "Old"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, "students", "s1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	if _, err := st.ApplyRemote(ctx, "students", []map[string]any{
		{"id": "s1", "name": "Fresh"},
	}); err != nil {
		t.Fatalf("ApplyRemote() failed: %v", err)
	}

	got, err := st.Get(ctx, "students", "s1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Fields["name"] != "Fresh" {
		t.Errorf("acknowledged record not refreshed: name = %v", got.Fields["name"])
	}
}

func TestChangeLog_AppendsAndPrunes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := st.UpdateLocal(ctx, "students", "s1", map[string]any{"name": "B"}); err != nil {
		t.Fatalf("UpdateLocal() failed: %v", err)
	}

	intents, err := st.ListIntents(ctx)
	if err != nil {
		t.Fatalf("ListIntents() failed: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("ListIntents() returned %d intents, want 2", len(intents))
	}
	if intents[0].Operation != OpCreate || intents[1].Operation != OpUpdate {
		t.Errorf("intent ops = %s, %s; want create, update", intents[0].Operation, intents[1].Operation)
	}

	// Still pending: prune must keep its intents.
	if pruned, err := st.PruneAcknowledged(ctx); err != nil {
		t.Fatalf("PruneAcknowledged() failed: %v", err)
	} else if pruned != 0 {
		t.Errorf("pruned %d intents while record still pending, want 0", pruned)
	}

	if err := st.MarkSynced(ctx, "students", "s1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if pruned, err := st.PruneAcknowledged(ctx); err != nil {
		t.Fatalf("PruneAcknowledged() failed: %v", err)
	} else if pruned != 2 {
		t.Errorf("pruned %d intents after acknowledge, want 2", pruned)
	}
}

func TestLastSync_RoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.LastSync(ctx); err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	} else if ok {
		t.Fatal("LastSync() reported a timestamp on a fresh mirror")
	}

	want := mustParseTime(t, "2026-02-03T10:00:00Z")
	if err := st.SetLastSync(ctx, want); err != nil {
		t.Fatalf("SetLastSync() failed: %v", err)
	}

	got, ok, err := st.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	}
	if !ok {
		t.Fatal("LastSync() reported no timestamp after SetLastSync")
	}
	if !got.Equal(want) {
		t.Errorf("LastSync() = %v, want %v", got, want)
	}
}
