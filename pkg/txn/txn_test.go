package txn

import (
	"testing"
	"time"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/committer"
	"github.com/corelang/store/pkg/coreerrors"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/corelang/store/pkg/kv"
	"github.com/corelang/store/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	kv  *kv.Store
	rs  *resource.Store
	eph *ephemeral.Table
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := backend.Open(backend.Options{Path: t.TempDir()})
	require.NoError(t, err)
	eph := ephemeral.New()
	rs := resource.New(b, eph)
	c := committer.New(b, rs)
	c.Start()
	t.Cleanup(func() {
		c.Stop()
		_ = b.Close()
	})
	return &harness{kv: kv.New(b, c), rs: rs, eph: eph}
}

func (h *harness) newTxn() *Transaction {
	return New(h.kv, h.rs, h.eph)
}

func awaitDone(t *testing.T, done <-chan bool) bool {
	t.Helper()
	select {
	case ok := <-done:
		return ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit result")
		return false
	}
}

func TestWriteKeyThenReadKeyLocal(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()

	require.NoError(t, tx.WriteKey([]byte("a"), []byte("1")))
	v, err := tx.ReadKey([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestCommitPersistsToStore(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()
	require.NoError(t, tx.WriteKey([]byte("a"), []byte("1")))

	done, err := tx.Commit()
	require.NoError(t, err)
	require.True(t, awaitDone(t, done))

	v, err := h.kv.ReadKey([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestReadKeyScansHashDepsAndRoots(t *testing.T) {
	h := newHarness(t)
	depHash := h.rs.Stow([]byte("payload"))

	writer := h.newTxn()
	require.NoError(t, writer.WriteKey([]byte("container"), []byte(depHash.String())))
	done, err := writer.Commit()
	require.NoError(t, err)
	require.True(t, awaitDone(t, done))
	// Release the charge Stow took, so only the reader's scan can root it.
	h.eph.Decref(depHash.EphemeronID(), 1)
	require.False(t, h.eph.IsRooted(depHash.EphemeronID()))

	reader := h.newTxn()
	v, err := reader.ReadKey([]byte("container"))
	require.NoError(t, err)
	assert.Equal(t, []byte(depHash.String()), v)
	assert.True(t, h.eph.IsRooted(depHash.EphemeronID()))

	reader.Drop()
}

func TestAssumeKeyConflictIsError(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()
	require.NoError(t, tx.AssumeKey([]byte("a"), []byte("1")))
	err := tx.AssumeKey([]byte("a"), []byte("2"))
	assert.ErrorIs(t, err, coreerrors.ErrConflictingAssumption)
}

func TestAssumeKeySameValueIsNoop(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()
	require.NoError(t, tx.AssumeKey([]byte("a"), []byte("1")))
	assert.NoError(t, tx.AssumeKey([]byte("a"), []byte("1")))
}

func TestCheckpointFoldsWritesIntoReads(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()
	require.NoError(t, tx.WriteKey([]byte("a"), []byte("1")))

	ok, err := tx.Checkpoint()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Empty(t, tx.writes)
	assert.Equal(t, []byte("1"), tx.reads["a"])
}

func TestStowResourceChargesAndDropReleases(t *testing.T) {
	h := newHarness(t)
	tx := h.newTxn()

	hash := tx.StowResource([]byte("blob"))
	assert.True(t, h.eph.IsRooted(hash.EphemeronID()))

	tx.Drop()
	assert.False(t, h.eph.IsRooted(hash.EphemeronID()))
}

func TestReadKeysBatchesUncachedOnly(t *testing.T) {
	h := newHarness(t)
	writer := h.newTxn()
	require.NoError(t, writer.WriteKey([]byte("a"), []byte("1")))
	require.NoError(t, writer.WriteKey([]byte("b"), []byte("2")))
	done, err := writer.Commit()
	require.NoError(t, err)
	require.True(t, awaitDone(t, done))

	reader := h.newTxn()
	require.NoError(t, reader.WriteKey([]byte("b"), []byte("local")))

	vals, err := reader.ReadKeys([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), vals[0])
	assert.Equal(t, []byte("local"), vals[1])
}
