// Package loadtest exercises the mirror under console-like load.
//
// It seeds a synthetic school of students and fee payments through the
// normal tracked write path, then measures read latency while concurrent
// readers query the mirror the way UI screens do, optionally with a
// reconciliation cycle running against an in-process gateway.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/champschool/champdesk/internal/engine"
	"github.com/champschool/champdesk/internal/gateway"
	"github.com/champschool/champdesk/internal/schema"
	"github.com/champschool/champdesk/internal/store"
	"github.com/google/uuid"
)

// TestMirror is a populated mirror ready for load runs.
type TestMirror struct {
	Store      *store.Store
	Gateway    *gateway.Memory
	StudentIDs []string
	Students   int
	Payments   int
}

// LatencyStats captures read performance of a load run.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
}

// CreateTestMirror builds a mirror at dir populated with numStudents
// students and paymentsPer fee payments each, written through the tracker
// so every record carries real provenance.
func CreateTestMirror(dir string, numStudents, paymentsPer int) (*TestMirror, error) {
	st, err := store.Open(filepath.Join(dir, "bench.db"))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := st.InitSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	tm := &TestMirror{
		Store:      st,
		Gateway:    gateway.NewMemory(),
		StudentIDs: make([]string, 0, numStudents),
		Students:   numStudents,
		Payments:   numStudents * paymentsPer,
	}

	classes := []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"}
	base := time.Now().Add(-300 * 24 * time.Hour)

	for i := 0; i < numStudents; i++ {
		id := uuid.NewString()
		doc := map[string]any{
			"student_id":  fmt.Sprintf("STU-%05d", i),
			"name":        fmt.Sprintf("Student %05d", i),
			"roll_number": fmt.Sprintf("%d", i%60+1),
			"class":       classes[i%len(classes)],
			"total_fee":   120000.0,
			"created_by":  "bench",
			"created_at":  schema.Timestamp(base.Add(time.Duration(i) * time.Minute)),
		}
		if _, err := st.CreateLocal(ctx, "students", id, doc); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to seed student %d: %w", i, err)
		}
		tm.StudentIDs = append(tm.StudentIDs, id)

		for j := 0; j < paymentsPer; j++ {
			pdoc := map[string]any{
				"student_id":   id,
				"amount":       float64(10000 + rand.Intn(20000)),
				"payment_date": schema.Timestamp(base.Add(time.Duration(j*30*24) * time.Hour)),
				"created_by":   "bench",
				"created_at":   schema.Timestamp(base.Add(time.Duration(i+j) * time.Minute)),
			}
			if _, err := st.CreateLocal(ctx, "fee_payments", uuid.NewString(), pdoc); err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("failed to seed payment: %w", err)
			}
		}
	}

	return tm, nil
}

// Close releases the mirror.
func (tm *TestMirror) Close() error {
	return tm.Store.Close()
}

// RunConcurrentReads simulates numReaders console screens each running
// queriesPerReader mirror queries, alternating full-class scans and point
// lookups. Returns aggregated latency statistics.
func (tm *TestMirror) RunConcurrentReads(numReaders, queriesPerReader int) (*LatencyStats, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		errCount  int
	)

	ctx := context.Background()
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()

			local := make([]time.Duration, 0, queriesPerReader)
			fails := 0

			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()
				var err error
				if j%2 == 0 {
					_, err = tm.Store.ListByField(ctx, "students", "class", "P4")
				} else {
					id := tm.StudentIDs[(reader+j)%len(tm.StudentIDs)]
					_, err = tm.Store.Get(ctx, "students", id)
				}
				local = append(local, time.Since(start))
				if err != nil {
					fails++
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += fails
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(durations) == 0 {
		return nil, fmt.Errorf("no queries completed")
	}

	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	return stats, nil
}

// SyncCycle runs one forced reconciliation cycle against the in-process
// gateway and returns its duration. Used to measure full-mirror push cost.
func (tm *TestMirror) SyncCycle(ctx context.Context) (time.Duration, *engine.Result, error) {
	eng := engine.New(tm.Store, tm.Gateway, &engine.Config{
		BackoffBase: time.Second,
		BackoffMax:  time.Minute,
		Logger:      log.New(io.Discard, "", 0),
	})

	start := time.Now()
	result, err := eng.SyncNow(ctx)
	if err != nil {
		return 0, nil, err
	}
	return time.Since(start), result, nil
}

func computeLatencyStats(durations []time.Duration) *LatencyStats {
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	percentile := func(p float64) time.Duration {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx]
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         total / time.Duration(len(sorted)),
		P50:          percentile(0.50),
		P95:          percentile(0.95),
		P99:          percentile(0.99),
		TotalQueries: len(sorted),
	}
}

// PrintStats writes a human-readable latency report.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Queries: %d (errors: %d)\n", s.TotalQueries, s.Errors)
	fmt.Fprintf(w, "  Min:  %v\n", s.Min)
	fmt.Fprintf(w, "  Mean: %v\n", s.Mean)
	fmt.Fprintf(w, "  P50:  %v\n", s.P50)
	fmt.Fprintf(w, "  P95:  %v\n", s.P95)
	fmt.Fprintf(w, "  P99:  %v\n", s.P99)
	fmt.Fprintf(w, "  Max:  %v\n", s.Max)
}
