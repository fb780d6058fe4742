package loadtest

import (
	"context"
	"testing"
	"time"
)

func TestCreateTestMirror_SeedsThroughTracker(t *testing.T) {
	tm, err := CreateTestMirror(t.TempDir(), 10, 2)
	if err != nil {
		t.Fatalf("CreateTestMirror() failed: %v", err)
	}
	defer tm.Close()

	ctx := context.Background()
	if n, _ := tm.Store.Count(ctx, "students"); n != 10 {
		t.Errorf("students count = %d, want 10", n)
	}
	if n, _ := tm.Store.Count(ctx, "fee_payments"); n != 20 {
		t.Errorf("fee_payments count = %d, want 20", n)
	}

	// Seeded writes are tracked like real ones.
	pending, err := tm.Store.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 30 {
		t.Errorf("PendingCount() = %d, want 30", pending)
	}
}

func TestRunConcurrentReads(t *testing.T) {
	tm, err := CreateTestMirror(t.TempDir(), 20, 1)
	if err != nil {
		t.Fatalf("CreateTestMirror() failed: %v", err)
	}
	defer tm.Close()

	stats, err := tm.RunConcurrentReads(4, 10)
	if err != nil {
		t.Fatalf("RunConcurrentReads() failed: %v", err)
	}

	if stats.TotalQueries != 40 {
		t.Errorf("TotalQueries = %d, want 40", stats.TotalQueries)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
	if stats.Min > stats.P50 || stats.P50 > stats.Max {
		t.Errorf("percentiles out of order: min=%v p50=%v max=%v", stats.Min, stats.P50, stats.Max)
	}
}

func TestSyncCycle_DrainsPending(t *testing.T) {
	tm, err := CreateTestMirror(t.TempDir(), 5, 1)
	if err != nil {
		t.Fatalf("CreateTestMirror() failed: %v", err)
	}
	defer tm.Close()

	ctx := context.Background()
	elapsed, result, err := tm.SyncCycle(ctx)
	if err != nil {
		t.Fatalf("SyncCycle() failed: %v", err)
	}
	if elapsed <= 0 {
		t.Error("SyncCycle() reported non-positive duration")
	}
	if result.Pushed() != 10 {
		t.Errorf("Pushed() = %d, want 10", result.Pushed())
	}

	pending, err := tm.Store.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("PendingCount() = %d after a clean cycle, want 0", pending)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	durations := []time.Duration{
		5 * time.Millisecond, 1 * time.Millisecond, 3 * time.Millisecond,
		2 * time.Millisecond, 4 * time.Millisecond,
	}

	stats := computeLatencyStats(durations)
	if stats.Min != time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 5*time.Millisecond {
		t.Errorf("Max = %v, want 5ms", stats.Max)
	}
	if stats.P50 != 3*time.Millisecond {
		t.Errorf("P50 = %v, want 3ms", stats.P50)
	}
	if stats.Mean != 3*time.Millisecond {
		t.Errorf("Mean = %v, want 3ms", stats.Mean)
	}
}
