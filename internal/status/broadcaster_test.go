package status

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/champschool/champdesk/internal/store"
)

func newTestBroadcaster(t *testing.T, online, syncing bool) (*Broadcaster, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	b := New(st,
		func() bool { return online },
		func() bool { return syncing },
		log.New(io.Discard, "", 0))
	return b, st
}

func TestSnapshot_ReflectsStoreState(t *testing.T) {
	b, st := newTestBroadcaster(t, true, false)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := st.CreateLocal(ctx, "fee_payments", "p1", map[string]any{"amount": 100}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	snap, err := b.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	if !snap.Online {
		t.Error("Online = false, want true")
	}
	if snap.Syncing {
		t.Error("Syncing = true, want false")
	}
	if snap.PendingChanges != 2 {
		t.Errorf("PendingChanges = %d, want 2", snap.PendingChanges)
	}
	if snap.LastSync != nil {
		t.Error("LastSync set on a mirror that never synced")
	}

	want := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	if err := st.SetLastSync(ctx, want); err != nil {
		t.Fatalf("SetLastSync() failed: %v", err)
	}

	snap, err = b.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if snap.LastSync == nil || !snap.LastSync.Equal(want) {
		t.Errorf("LastSync = %v, want %v", snap.LastSync, want)
	}
}

func TestNotify_FansOutToObservers(t *testing.T) {
	b, _ := newTestBroadcaster(t, true, true)
	ctx := context.Background()

	var got []Snapshot
	unsubscribe := b.Subscribe(func(s Snapshot) { got = append(got, s) })

	b.Notify(ctx)
	if len(got) != 1 {
		t.Fatalf("observer received %d snapshots, want 1", len(got))
	}
	if !got[0].Syncing {
		t.Error("snapshot Syncing = false, want true")
	}

	unsubscribe()
	unsubscribe() // second call is a no-op

	b.Notify(ctx)
	if len(got) != 1 {
		t.Errorf("observer received %d snapshots after unsubscribe, want 1", len(got))
	}
}

func TestNotify_MultipleObservers(t *testing.T) {
	b, _ := newTestBroadcaster(t, false, false)

	first, second := 0, 0
	b.Subscribe(func(Snapshot) { first++ })
	b.Subscribe(func(Snapshot) { second++ })

	b.Notify(context.Background())
	b.Notify(context.Background())

	if first != 2 || second != 2 {
		t.Errorf("observer counts = %d, %d; want 2, 2", first, second)
	}
}
