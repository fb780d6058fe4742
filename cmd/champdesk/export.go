package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/champschool/champdesk/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the mirror to a JSONL backup file",
	Long: `Export every mirror table to a JSONL file, one record per line.

Records carry their sync flags, so pending local changes survive a backup
and restore and still push on the next cycle.`,
	Args: cobra.ExactArgs(1),
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

		result, err := export.ToFile(ctx, st, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d record(s) to %s\n", result.Records, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore the mirror from a JSONL backup file",
	Long: `Import records from a JSONL backup into the mirror, overwriting
records with matching ids. Sync flags are restored verbatim.`,
	Args: cobra.ExactArgs(1),
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

		result, err := export.FromFile(ctx, st, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d record(s) from %s\n", result.Records, args[0])
		for table, n := range result.Tables {
			fmt.Printf("  %s: %d\n", table, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
