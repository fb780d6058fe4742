// Package engine runs reconciliation cycles between the local mirror and
// the remote database: push every locally-pending record, then pull the
// full remote state and merge everything that is not mid-flight locally.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/champschool/champdesk/internal/gateway"
	"github.com/champschool/champdesk/internal/schema"
	"github.com/champschool/champdesk/internal/store"
)

// ErrCycleInProgress is returned when a cycle is triggered while another
// one is still running. Callers treat it as a no-op.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// Config holds engine tuning knobs.
type Config struct {
	// BackoffBase is the delay after the first failed push attempt.
	// Doubles per attempt up to BackoffMax. A forced cycle ignores it.
	BackoffBase time.Duration

	// BackoffMax caps the retry delay. Records are never dropped; past
	// the cap they keep retrying at this interval.
	BackoffMax time.Duration

	// AttemptWarnThreshold is the failed-attempt count after which a
	// record is logged loudly as stuck.
	AttemptWarnThreshold int

	// OnCycle, if set, is invoked at cycle start and cycle end. The
	// status broadcaster hooks in here.
	OnCycle func()

	// Logger for cycle activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BackoffBase:          30 * time.Second,
		BackoffMax:           15 * time.Minute,
		AttemptWarnThreshold: 8,
		Logger:               log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine orchestrates reconciliation cycles. At most one cycle runs at a
// time; the gate is checked and set before any blocking call.
type Engine struct {
	store  *store.Store
	gw     gateway.Gateway
	config *Config

	mu         sync.Mutex
	inProgress bool
}

// New creates an Engine. A nil config gets DefaultConfig.
func New(st *store.Store, gw gateway.Gateway, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{store: st, gw: gw, config: config}
}

// InProgress reports whether a cycle is currently running.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inProgress
}

// TableResult summarizes one table's share of a cycle.
type TableResult struct {
	Table   string
	Pushed  int
	Failed  int
	Skipped int
	Pulled  int
	PullErr error
}

// Result summarizes one reconciliation cycle.
type Result struct {
	Start  time.Time
	End    time.Time
	Tables []TableResult
}

// Pushed sums successfully pushed records across tables.
func (r *Result) Pushed() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Pushed
	}
	return n
}

// Failed sums failed pushes across tables.
func (r *Result) Failed() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Failed
	}
	return n
}

// Pulled sums merged remote records across tables.
func (r *Result) Pulled() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Pulled
	}
	return n
}

// Clean reports whether every push succeeded and every pull merged. Only
// a clean cycle advances the last-sync timestamp.
func (r *Result) Clean() bool {
	for _, t := range r.Tables {
		if t.Failed > 0 || t.Skipped > 0 || t.PullErr != nil {
			return false
		}
	}
	return true
}

// Sync runs one reconciliation cycle, honoring per-record backoff.
// Returns ErrCycleInProgress if a cycle is already running.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	return e.run(ctx, false)
}

// SyncNow runs one forced cycle: backoff delays are ignored so every
// pending record is attempted. This is the user-initiated "sync now" path.
func (e *Engine) SyncNow(ctx context.Context) (*Result, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, force bool) (*Result, error) {
	// Single-flight gate. Checked and set under the lock before any
	// blocking call, so a reentrant trigger can never start a second
	// cycle.
	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	e.inProgress = true
	e.mu.Unlock()

	e.notify()
	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
		e.notify()
	}()

	result := &Result{Start: time.Now()}

	// Push phase: tables in fixed registry order. A single record's
	// failure is logged and the record stays pending; it never aborts
	// the cycle.
	for _, tbl := range schema.Tables {
		tr := TableResult{Table: tbl.Name}
		if err := e.pushTable(ctx, tbl.Name, force, &tr); err != nil {
			return result, err
		}
		result.Tables = append(result.Tables, tr)
	}

	// Pull phase: fan out one fetch per table, each independently
	// fault-isolated. One table's fetch failure skips only that table's
	// merge.
	e.pullAll(ctx, result)

	result.End = time.Now()

	if result.Clean() {
		if err := e.store.SetLastSync(ctx, result.End); err != nil {
			return result, err
		}
		if pruned, err := e.store.PruneAcknowledged(ctx); err != nil {
			e.config.Logger.Printf("Warning: failed to prune change log: %v", err)
		} else if pruned > 0 {
			e.config.Logger.Printf("Pruned %d acknowledged change intents", pruned)
		}
	}

	e.config.Logger.Printf("Cycle complete: pushed=%d failed=%d pulled=%d clean=%v (%.1fs)",
		result.Pushed(), result.Failed(), result.Pulled(), result.Clean(),
		result.End.Sub(result.Start).Seconds())

	return result, nil
}

// pushTable dispatches every due pending record of one table. Returns an
// error only for local store failures, which are fatal for the cycle.
func (e *Engine) pushTable(ctx context.Context, table string, force bool, tr *TableResult) error {
	pending, err := e.store.ListPending(ctx, table)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, row := range pending {
		if !force && !attemptDue(row, now, e.config.BackoffBase, e.config.BackoffMax) {
			tr.Skipped++
			continue
		}

		if err := e.pushRecord(ctx, table, row); err != nil {
			tr.Failed++
			e.config.Logger.Printf("Failed to sync %s/%s: %v", table, row.ID, err)
			if bumpErr := e.store.BumpAttempt(ctx, table, row.ID); bumpErr != nil {
				return bumpErr
			}
			if row.SyncAttempts+1 >= e.config.AttemptWarnThreshold {
				e.config.Logger.Printf("WARNING: %s/%s still failing after %d attempts",
					table, row.ID, row.SyncAttempts+1)
			}
			continue
		}
		tr.Pushed++
	}

	return nil
}

// pushRecord sends one pending record to the remote service and settles
// its local state on success.
func (e *Engine) pushRecord(ctx context.Context, table string, row *store.Row) error {
	switch {
	case row.LocallyDeleted:
		if err := e.gw.Delete(ctx, table, row.ID); err != nil {
			return fmt.Errorf("remote delete: %w", err)
		}
		// Confirmed remote delete: the record leaves the mirror
		// entirely rather than being marked.
		return e.store.Purge(ctx, table, row.ID)

	case row.LocallyCreated:
		if err := e.gw.Insert(ctx, table, row.Document()); err != nil {
			return fmt.Errorf("remote insert: %w", err)
		}
		return e.store.MarkSynced(ctx, table, row.ID)

	case row.LocallyUpdated:
		if err := e.gw.Update(ctx, table, row.ID, row.Fields); err != nil {
			return fmt.Errorf("remote update: %w", err)
		}
		return e.store.MarkSynced(ctx, table, row.ID)

	default:
		// Pending without provenance flags should not happen; a repeat
		// insert is harmless (upsert) and restores the invariant.
		if err := e.gw.Insert(ctx, table, row.Document()); err != nil {
			return fmt.Errorf("remote insert: %w", err)
		}
		return e.store.MarkSynced(ctx, table, row.ID)
	}
}

// pullAll fetches every remote table concurrently and merges non-pending
// records into the mirror. Each table commits independently as soon as its
// own fetch and merge finish.
func (e *Engine) pullAll(ctx context.Context, result *Result) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range result.Tables {
		wg.Add(1)
		go func(tr *TableResult) {
			defer wg.Done()

			pulled, err := e.pullTable(ctx, tr.Table)

			mu.Lock()
			tr.Pulled = pulled
			tr.PullErr = err
			mu.Unlock()

			if err != nil {
				e.config.Logger.Printf("Pull failed for %s: %v", tr.Table, err)
			}
		}(&result.Tables[i])
	}

	wg.Wait()
}

// pullTable fetches one remote table and bulk-upserts every record whose
// id is not locally pending. The pending set is recomputed after the fetch
// returns, immediately before the merge, so a facade write racing the
// cycle still wins locally.
func (e *Engine) pullTable(ctx context.Context, table string) (int, error) {
	docs, err := e.gw.SelectAll(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("remote fetch: %w", err)
	}

	pending, err := e.store.PendingIDs(ctx, table)
	if err != nil {
		return 0, err
	}

	merge := docs[:0:0]
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if _, isPending := pending[id]; isPending {
			continue
		}
		merge = append(merge, doc)
	}

	return e.store.ApplyRemote(ctx, table, merge)
}

// SetOnCycle registers the cycle start/end hook. Call before the first
// cycle is triggered.
func (e *Engine) SetOnCycle(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.OnCycle = fn
}

func (e *Engine) notify() {
	e.mu.Lock()
	fn := e.config.OnCycle
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
