package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/stormdb/pkg/config"
	"github.com/cuemby/stormdb/pkg/log"
	"github.com/cuemby/stormdb/pkg/metrics"
	"github.com/cuemby/stormdb/pkg/relational"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stormdb",
	Short: "stormdb - an embedded transactional storage engine",
	Long: `stormdb is the transactional storage core of an in-process
database: a page-aligned commit log, an algebraic row type system, and an
MVCC table store, bound together by a relational facade.

This binary is an admin and diagnostic tool around that engine, not a
server: fsck a data directory, inspect its catalog, take or list
snapshots, and run the built-in microbenchmarks.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"stormdb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "./stormdb-data", "Database directory")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides --data-dir's defaults)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(benchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig resolves the --config/--data-dir flags on cmd into a
// config.Config, the way every subcommand that opens a database needs to.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return config.Default(dataDir), nil
	}
	return config.Load(configPath, dataDir)
}

// openDB opens the database named by cmd's --data-dir/--config flags with
// a no-op metrics collector: CLI invocations are one-shot and don't have a
// Prometheus scraper to report to.
func openDB(cmd *cobra.Command) (*relational.RelationalDB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return relational.Open(cfg.DataDir, cfg, metrics.NoopCollector{})
}
