package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/champschool/champdesk/internal/loadtest"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark mirror reads and a full sync cycle",
	Long: `Seed a throwaway mirror with synthetic students and fee payments,
measure concurrent read latency, and time one full reconciliation cycle
against an in-process gateway.

The benchmark never touches the configured mirror or the hosted database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		students, _ := cmd.Flags().GetInt("students")
		payments, _ := cmd.Flags().GetInt("payments")
		readers, _ := cmd.Flags().GetInt("readers")
		queries, _ := cmd.Flags().GetInt("queries")

		dir, err := os.MkdirTemp("", "champdesk-bench-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		fmt.Printf("Seeding %d students with %d payments each...\n", students, payments)
		start := time.Now()
		tm, err := loadtest.CreateTestMirror(dir, students, payments)
		if err != nil {
			return err
		}
		defer tm.Close()
		fmt.Printf("Seeded %d records in %v\n\n", tm.Students+tm.Payments,
			time.Since(start).Round(time.Millisecond))

		fmt.Printf("Running %d readers x %d queries...\n", readers, queries)
		stats, err := tm.RunConcurrentReads(readers, queries)
		if err != nil {
			return err
		}
		stats.PrintStats(os.Stdout)

		fmt.Println("\nTiming one forced sync cycle...")
		elapsed, result, err := tm.SyncCycle(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Cycle: %v (pushed %d, pulled %d)\n",
			elapsed.Round(time.Millisecond), result.Pushed(), result.Pulled())
		return nil
	},
}

func init() {
	benchCmd.Flags().Int("students", 500, "Number of synthetic students")
	benchCmd.Flags().Int("payments", 4, "Fee payments per student")
	benchCmd.Flags().Int("readers", 20, "Concurrent readers")
	benchCmd.Flags().Int("queries", 50, "Queries per reader")
	rootCmd.AddCommand(benchCmd)
}
