package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/champschool/champdesk/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation cycle now",
	Long: `Run a single forced reconciliation cycle and print the result.

A forced cycle retries every pending record regardless of its retry
backoff. Pending local changes are pushed first, then each table is
pulled back down from the hosted database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		gw, err := openGateway(cfg)
		if err != nil {
			return err
		}
		defer gw.Close()

		eng := engine.New(st, gw, &engine.Config{
			BackoffBase: cfg.BackoffBase,
			BackoffMax:  cfg.BackoffMax,
			Logger:      log.New(os.Stderr, "[engine] ", log.LstdFlags),
		})

		fmt.Println("Syncing...")
		result, err := eng.SyncNow(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		elapsed := result.End.Sub(result.Start).Round(time.Millisecond)
		fmt.Printf("Cycle finished in %v (pushed %d, pulled %d)\n",
			elapsed, result.Pushed(), result.Pulled())

		for _, tr := range result.Tables {
			if tr.Failed > 0 {
				fmt.Printf("  %s: %d push failure(s)\n", tr.Table, tr.Failed)
			}
			if tr.PullErr != nil {
				fmt.Printf("  %s: pull failed: %v\n", tr.Table, tr.PullErr)
			}
		}

		if !result.Clean() {
			return fmt.Errorf("cycle finished with failures; pending changes were kept for retry")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
