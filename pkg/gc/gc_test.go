package gc

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/committer"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/corelang/store/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	b   *backend.Backend
	rs  *resource.Store
	eph *ephemeral.Table
	c   *committer.Committer
	gc  *Collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := backend.Open(backend.Options{Path: t.TempDir()})
	require.NoError(t, err)
	eph := ephemeral.New()
	rs := resource.New(b, eph)
	c := committer.New(b, rs)
	c.Start()
	g := New(b, rs, eph, c, Options{Interval: time.Hour, FanoutPerStep: 100})
	t.Cleanup(func() {
		c.Stop()
		_ = b.Close()
	})
	return &harness{b: b, rs: rs, eph: eph, c: c, gc: g}
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	done := h.c.Submit(nil, nil)
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out flushing")
	}
}

func (h *harness) hasResourceKey(t *testing.T, key []byte) bool {
	t.Helper()
	var found bool
	err := h.b.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(backend.BucketResources).Get(key) != nil
		return nil
	})
	require.NoError(t, err)
	return found
}

func TestCycleCollectsUnrootedUnreferencedResource(t *testing.T) {
	h := newHarness(t)
	data := []byte("garbage")
	hash := h.rs.Stow(data)
	h.flush(t)

	h.eph.Decref(hash.EphemeronID(), 1)

	require.NoError(t, h.gc.Cycle())

	assert.False(t, h.hasResourceKey(t, resourceKeyForTest(hash)))
}

func TestCycleRetainsRootedResource(t *testing.T) {
	h := newHarness(t)
	data := []byte("pinned")
	hash := h.rs.Stow(data)
	h.flush(t)

	require.NoError(t, h.gc.Cycle())

	assert.True(t, h.hasResourceKey(t, resourceKeyForTest(hash)))
}

func TestCycleRetainsResourceReachableFromKeyValue(t *testing.T) {
	h := newHarness(t)
	data := []byte("referenced")
	hash := h.rs.Stow(data)
	h.flush(t)
	h.eph.Decref(hash.EphemeronID(), 1)

	done := h.c.Submit(nil, map[string][]byte{"manifest": []byte(hash.String())})
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out writing manifest")
	}

	require.NoError(t, h.gc.Cycle())

	assert.True(t, h.hasResourceKey(t, resourceKeyForTest(hash)))
}

func TestCycleRetainsAllDirectlyReferencedResourcesBeyondFanoutBudget(t *testing.T) {
	b, err := backend.Open(backend.Options{Path: t.TempDir()})
	require.NoError(t, err)
	eph := ephemeral.New()
	rs := resource.New(b, eph)
	c := committer.New(b, rs)
	c.Start()
	// A fanout budget of 1 only bounds resource-to-resource recursion;
	// it must not truncate the initial per-key dependency scan.
	g := New(b, rs, eph, c, Options{Interval: time.Hour, FanoutPerStep: 1})
	t.Cleanup(func() {
		c.Stop()
		_ = b.Close()
	})

	hashes := make([]chash.Hash, 0, 5)
	writes := map[string][]byte{}
	for i := 0; i < 5; i++ {
		hh := rs.Stow([]byte{byte(i)})
		eph.Decref(hh.EphemeronID(), 1)
		writes[string(rune('a'+i))] = []byte(hh.String())
		hashes = append(hashes, hh)
	}
	done := c.Submit(nil, writes)
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out writing manifest entries")
	}

	require.NoError(t, g.Cycle())

	h := &harness{b: b, rs: rs, eph: eph, c: c, gc: g}
	for _, hh := range hashes {
		assert.True(t, h.hasResourceKey(t, resourceKeyForTest(hh)))
	}
}

// resourceKeyForTest mirrors resource.go's private key encoding so the
// test can assert directly on the backend without exporting it.
func resourceKeyForTest(h interface{ String() string }) []byte {
	s := h.String()
	key := make([]byte, 0, len(s)+1)
	key = append(key, '#')
	key = append(key, s...)
	return key
}
