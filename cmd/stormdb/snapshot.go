package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuemby/stormdb/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage point-in-time snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a new snapshot at the database's current committed offset",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := db.Snapshot(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		fmt.Println("✓ Snapshot written")
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every snapshot offset on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := snapshot.Open(filepath.Join(cfg.DataDir, "snapshots"))
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		offsets, err := store.List()
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		if len(offsets) == 0 {
			fmt.Println("No snapshots found")
			return nil
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
		for _, o := range offsets {
			fmt.Println(o)
		}
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}
