package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact OFFSET",
	Short: "Truncate the commit log back to a given offset",
	Long: `compact truncates the commit log to end at OFFSET, discarding every
commit after it, and invalidates every snapshot taken after OFFSET
(it can no longer be replayed against a log that doesn't reach it). This
is destructive: the discarded commits cannot be recovered afterward.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q: %w", args[0], err)
		}

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := db.ResetTo(offset); err != nil {
			return fmt.Errorf("compact: %w", err)
		}
		fmt.Printf("✓ Commit log truncated to offset %d\n", offset)
		return nil
	},
}
