package backend

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Options{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpenCreatesBuckets(t *testing.T) {
	b := openTest(t)
	err := b.View(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketData, BucketResources, BucketRoots} {
			if tx.Bucket(name) == nil {
				t.Fatalf("bucket %s missing", name)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateViewRoundTrip(t *testing.T) {
	b := openTest(t)

	err := b.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketData).Put([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	var got []byte
	err = b.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(BucketData).Get([]byte("k"))
		got = append([]byte(nil), v...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMaxSizeMBRejectsWriteOnceExceeded(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(Options{Path: dir})
	require.NoError(t, err)
	defer b.Close()

	// Grow the file comfortably past 1MB so the cap check below is
	// deterministic regardless of bbolt's initial page allocation.
	require.NoError(t, b.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketData).Put([]byte("big"), make([]byte, 2*1024*1024))
	}))

	info, err := b.Stats()
	require.NoError(t, err)
	require.Greater(t, info.SizeBytes, int64(1024*1024))

	b.opts.MaxSizeMB = 0
	assert.NoError(t, b.checkSize(), "MaxSizeMB=0 means unbounded")

	b.opts.MaxSizeMB = 1
	assert.Error(t, b.checkSize(), "file already exceeds the 1MB cap")

	err = b.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketData).Put([]byte("k2"), []byte("v"))
	})
	assert.Error(t, err)

	_ = filepath.Join(dir, DBFileName)
}

func TestStatsReportsSize(t *testing.T) {
	b := openTest(t)
	s, err := b.Stats()
	require.NoError(t, err)
	assert.Greater(t, s.SizeBytes, int64(0))
}
