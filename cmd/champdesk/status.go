package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/champschool/champdesk/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror and sync state",
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

		pending, err := st.PendingCount(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Mirror:  %s\n", cfg.DBPath)
		fmt.Printf("Pending: %d change(s)\n", pending)

		if last, ok, err := st.LastSync(ctx); err != nil {
			return err
		} else if ok {
			fmt.Printf("Last clean sync: %s (%v ago)\n",
				last.Format(time.RFC3339), time.Since(last).Round(time.Second))
		} else {
			fmt.Println("Last clean sync: never")
		}

		fmt.Println()
		for _, tbl := range schema.Tables {
			total, err := st.Count(ctx, tbl.Name)
			if err != nil {
				return err
			}
			tblPending, err := st.PendingCountTable(ctx, tbl.Name)
			if err != nil {
				return err
			}
			if tblPending > 0 {
				fmt.Printf("  %-22s %6d record(s)  %d pending\n", tbl.Name, total, tblPending)
			} else {
				fmt.Printf("  %-22s %6d record(s)\n", tbl.Name, total)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
