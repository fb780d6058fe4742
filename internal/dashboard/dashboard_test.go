package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/champschool/champdesk/internal/status"
	"github.com/champschool/champdesk/internal/store"
)

func newTestServer(t *testing.T, online, syncing bool) (*Server, *status.Broadcaster, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	b := status.New(st,
		func() bool { return online },
		func() bool { return syncing },
		logger)

	server := NewServer(b, StoreCounts(st), &Config{Port: 0, Logger: logger})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	return server, b, st
}

func TestServer_StartStop(t *testing.T) {
	server, _, _ := newTestServer(t, true, false)
	if server.GetAddr() == "" {
		t.Fatal("GetAddr() is empty after Start")
	}
}

func TestWebSocket_InitialSnapshotAndBroadcast(t *testing.T) {
	server, b, st := newTestServer(t, true, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket.Dial() failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// A fresh connection gets the current snapshot without waiting.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() of initial frame failed: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if msg.Type != MessageTypeStatus {
		t.Fatalf("initial frame type = %s, want %s", msg.Type, MessageTypeStatus)
	}

	var snap status.Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("Unmarshal() of snapshot failed: %v", err)
	}
	if !snap.Online || snap.PendingChanges != 0 {
		t.Errorf("initial snapshot = %+v, want online with no pending changes", snap)
	}

	// A status notification turns into a pushed frame.
	if _, err := st.CreateLocal(context.Background(), "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	b.Notify(context.Background())

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() of broadcast frame failed: %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("Unmarshal() of snapshot failed: %v", err)
	}
	if snap.PendingChanges != 1 {
		t.Errorf("broadcast PendingChanges = %d, want 1", snap.PendingChanges)
	}
}

func TestAPI_Status(t *testing.T) {
	server, _, st := newTestServer(t, true, true)

	if _, err := st.CreateLocal(context.Background(), "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	resp, err := http.Get("http://" + server.GetAddr() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !snap.Online || !snap.Syncing || snap.PendingChanges != 1 {
		t.Errorf("snapshot = %+v, want online, syncing, 1 pending", snap)
	}
}

func TestAPI_Tables(t *testing.T) {
	server, _, st := newTestServer(t, true, false)
	ctx := context.Background()

	if _, err := st.CreateLocal(ctx, "students", "s1", map[string]any{"name": "A"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if _, err := st.CreateLocal(ctx, "students", "s2", map[string]any{"name": "B"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, "students", "s2"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	resp, err := http.Get("http://" + server.GetAddr() + "/api/tables")
	if err != nil {
		t.Fatalf("GET /api/tables failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Tables []TableCounts `json:"tables"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Tables) != 7 {
		t.Fatalf("got %d tables, want 7", len(body.Tables))
	}

	for _, tc := range body.Tables {
		if tc.Table != "students" {
			continue
		}
		if tc.Total != 2 || tc.Pending != 1 {
			t.Errorf("students counts = total:%d pending:%d, want 2 and 1", tc.Total, tc.Pending)
		}
	}
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t, false, false)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
