package coreconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coredb.yaml")
	contents := `
path: /var/lib/coredb
max_size_mb: 1024
cache_bytes: 67108864
log_level: debug
gc_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/coredb", opts.Path)
	assert.Equal(t, 1024, opts.MaxSizeMB)
	assert.Equal(t, 67108864, opts.CacheBytes)
	assert.Equal(t, "debug", opts.LogLevel)
}

func TestValidateRejectsEmptyPath(t *testing.T) {
	err := (Options{}).Validate()
	assert.Error(t, err)
}

func TestValidateRejectsNegativeSizes(t *testing.T) {
	assert.Error(t, Options{Path: "x", MaxSizeMB: -1}.Validate())
	assert.Error(t, Options{Path: "x", CacheBytes: -1}.Validate())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
