// Package config loads the on-disk YAML configuration for a stormdb engine
// instance: where its commit log and snapshots live, segment/commit sizing,
// direct-I/O behavior, and logging level.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/stormdb/pkg/commitlog"
	"github.com/cuemby/stormdb/pkg/dio"
)

// Config is the top-level engine configuration, unmarshaled from a single
// YAML file.
type Config struct {
	DataDir string    `yaml:"dataDir"`
	Log     LogConfig `yaml:"log"`
	Storage Storage   `yaml:"storage"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"jsonOutput"`
}

// Storage holds the commit log and snapshot sizing knobs.
type Storage struct {
	MaxSegmentSize     uint64        `yaml:"maxSegmentSize"`
	MaxRecordsInCommit uint16        `yaml:"maxRecordsInCommit"`
	DirectIO           bool          `yaml:"directIO"`
	SyncIO             bool          `yaml:"syncIO"`
	SnapshotInterval   time.Duration `yaml:"snapshotInterval"`
}

// CommitlogOptions projects Storage onto commitlog.Options, the shape
// pkg/relational.Open needs to hand to commitlog.Open.
func (s Storage) CommitlogOptions() commitlog.Options {
	return commitlog.Options{
		MaxSegmentSize:     s.MaxSegmentSize,
		MaxRecordsInCommit: s.MaxRecordsInCommit,
		FsOptions:          dio.FsOptions{DirectIO: s.DirectIO, SyncIO: s.SyncIO},
	}
}

// Default returns the configuration used when no file is supplied: a
// 64MiB segment cap, 4096 records per commit, direct I/O enabled, snapshots
// every 5 minutes.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Log:     LogConfig{Level: "info"},
		Storage: Storage{
			MaxSegmentSize:     64 << 20,
			MaxRecordsInCommit: 4096,
			DirectIO:           true,
			SyncIO:             true,
			SnapshotInterval:   5 * time.Minute,
		},
	}
}

// Load reads and parses a YAML configuration file, filling any field left
// zero with Default(dataDir)'s value.
func Load(path, dataDir string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default(dataDir)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.Storage.MaxSegmentSize == 0 {
		cfg.Storage.MaxSegmentSize = Default(dataDir).Storage.MaxSegmentSize
	}
	if cfg.Storage.MaxRecordsInCommit == 0 {
		cfg.Storage.MaxRecordsInCommit = Default(dataDir).Storage.MaxRecordsInCommit
	}
	if cfg.Storage.SnapshotInterval == 0 {
		cfg.Storage.SnapshotInterval = Default(dataDir).Storage.SnapshotInterval
	}
	return cfg, nil
}
