package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stormdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, Default(dir).Storage.MaxSegmentSize, cfg.Storage.MaxSegmentSize)
	assert.Equal(t, Default(dir).Storage.MaxRecordsInCommit, cfg.Storage.MaxRecordsInCommit)
}

func TestLoadOverridesStorage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stormdb.yaml")
	body := "storage:\n  maxSegmentSize: 1024\n  maxRecordsInCommit: 8\n  directIO: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), cfg.Storage.MaxSegmentSize)
	assert.Equal(t, uint16(8), cfg.Storage.MaxRecordsInCommit)
	assert.False(t, cfg.Storage.DirectIO)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir())
	assert.Error(t, err)
}
