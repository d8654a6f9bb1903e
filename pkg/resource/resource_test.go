package resource

import (
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *backend.Backend, *ephemeral.Table) {
	t.Helper()
	b, err := backend.Open(backend.Options{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	eph := ephemeral.New()
	return New(b, eph), b, eph
}

func TestStowLoadRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	h := s.Stow([]byte("hello"))

	got, err := s.Load(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestLoadMissingReturnsTypedError(t *testing.T) {
	s, _, _ := newTestStore(t)
	bogus := s.Stow([]byte("x"))
	s.mu.Lock()
	delete(s.pending, bogus)
	s.mu.Unlock()

	_, err := s.Load(bogus)
	require.Error(t, err)
	var missing *MissingResourceError
	assert.ErrorAs(t, err, &missing)
}

func TestStowIsIdempotentOnBytes(t *testing.T) {
	s, _, eph := newTestStore(t)
	h1 := s.Stow([]byte("same"))
	h2 := s.Stow([]byte("same"))
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, s.PendingCount())
	assert.True(t, eph.IsRooted(h1.EphemeronID()))
}

func TestFlushPendingPersistsAndPruneRespectsRoots(t *testing.T) {
	s, b, eph := newTestStore(t)
	h := s.Stow([]byte("payload"))

	err := b.Update(func(tx *bolt.Tx) error {
		fh, err := s.FlushPending(tx)
		require.NoError(t, err)
		require.Contains(t, fh, h)
		return nil
	})
	require.NoError(t, err)

	// Still rooted: pruning must not drop it from the in-memory buffer.
	s.PruneFlushed([]chash.Hash{h})
	assert.Equal(t, 1, s.PendingCount())

	eph.Decref(h.EphemeronID(), 1)
	s.PruneFlushed([]chash.Hash{h})
	assert.Equal(t, 0, s.PendingCount())

	// But the resource is still loadable from disk.
	got, err := s.Load(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestWithResourceZeroCopyMissing(t *testing.T) {
	s, _, _ := newTestStore(t)
	h := s.Stow([]byte("x"))
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()

	err := s.WithResourceZeroCopy(h, func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestHasResource(t *testing.T) {
	s, _, _ := newTestStore(t)
	h := s.Stow([]byte("present"))
	assert.True(t, s.HasResource(h))
}
