// Package status computes and fans out sync-status snapshots for UI
// observers.
package status

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/champschool/champdesk/internal/store"
)

// Snapshot is the UI-facing view of the sync subsystem.
type Snapshot struct {
	Online         bool       `json:"online"`
	Syncing        bool       `json:"syncing"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	PendingChanges int        `json:"pending_changes"`
}

// Observer receives snapshots. Callbacks run on the notifying goroutine
// and should return quickly.
type Observer func(Snapshot)

// Broadcaster recomputes a snapshot on every notify-worthy event and
// pushes it to all registered observers. It keeps no state of its own:
// the online and syncing flags are read from the provided funcs, the
// last-sync timestamp and pending count from the mirror store.
type Broadcaster struct {
	store   *store.Store
	online  func() bool
	syncing func() bool
	logger  *log.Logger

	mu     sync.Mutex
	subs   map[int]Observer
	nextID int
}

// New creates a Broadcaster. online and syncing must be non-nil.
func New(st *store.Store, online, syncing func() bool, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.New(os.Stderr, "[status] ", log.LstdFlags)
	}
	return &Broadcaster{
		store:   st,
		online:  online,
		syncing: syncing,
		logger:  logger,
		subs:    make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns its unsubscribe func.
// Unsubscribing twice is safe.
func (b *Broadcaster) Subscribe(obs Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = obs

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Snapshot computes the current status.
func (b *Broadcaster) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Online:  b.online(),
		Syncing: b.syncing(),
	}

	pending, err := b.store.PendingCount(ctx)
	if err != nil {
		return snap, err
	}
	snap.PendingChanges = pending

	if last, ok, err := b.store.LastSync(ctx); err != nil {
		return snap, err
	} else if ok {
		snap.LastSync = &last
	}

	return snap, nil
}

// Notify recomputes the snapshot and pushes it to every observer. Store
// read failures are logged, not propagated; status fan-out must never
// take the sync path down.
func (b *Broadcaster) Notify(ctx context.Context) {
	snap, err := b.Snapshot(ctx)
	if err != nil {
		b.logger.Printf("Failed to compute status snapshot: %v", err)
		return
	}

	b.mu.Lock()
	observers := make([]Observer, 0, len(b.subs))
	for _, obs := range b.subs {
		observers = append(observers, obs)
	}
	b.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
}
