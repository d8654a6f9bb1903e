package txn

import (
	"sync"

	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/coreerrors"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/corelang/store/pkg/kv"
	"github.com/corelang/store/pkg/resource"
)

// Transaction accumulates reads, writes and ephemeral root charges for
// a single logical unit of work.
type Transaction struct {
	kv        *kv.Store
	resources *resource.Store
	eph       *ephemeral.Table

	mu        sync.Mutex
	reads     map[string][]byte
	writes    map[string][]byte
	ephDeltas map[uint64]int64
}

// New creates an empty transaction over the given façade, resource
// store and ephemeral root table.
func New(store *kv.Store, rs *resource.Store, eph *ephemeral.Table) *Transaction {
	return &Transaction{
		kv:        store,
		resources: rs,
		eph:       eph,
		reads:     make(map[string][]byte),
		writes:    make(map[string][]byte),
		ephDeltas: make(map[uint64]int64),
	}
}

// ReadKey returns k's value, checking the transaction's own writes and
// reads first so a transaction always sees its own in-flight writes.
func (tx *Transaction) ReadKey(k []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	key := string(k)
	if v, ok := tx.writes[key]; ok {
		return v, nil
	}
	if v, ok := tx.reads[key]; ok {
		return v, nil
	}
	v, err := tx.kv.ReadKey(k)
	if err != nil {
		return nil, err
	}
	tx.chargeAndRecord(key, v)
	return v, nil
}

// ReadKeys batches the uncached subset of ks through a single
// kv.ReadKeys call, preserving snapshot consistency for that subset.
func (tx *Transaction) ReadKeys(ks [][]byte) ([][]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	out := make([][]byte, len(ks))
	var missIdx []int
	var missKeys [][]byte
	for i, k := range ks {
		key := string(k)
		if v, ok := tx.writes[key]; ok {
			out[i] = v
			continue
		}
		if v, ok := tx.reads[key]; ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, k)
	}
	if len(missKeys) == 0 {
		return out, nil
	}
	vals, err := tx.kv.ReadKeys(missKeys)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vals[j]
		tx.chargeAndRecord(string(ks[i]), vals[j])
	}
	return out, nil
}

// chargeAndRecord scans v for embedded hash dependencies, increfs each
// one's ephemeron id (charged to this transaction), and records (k, v)
// in reads. Caller must hold tx.mu.
func (tx *Transaction) chargeAndRecord(k string, v []byte) {
	chash.IterHashDeps(v, func(h chash.Hash) {
		id := h.EphemeronID()
		tx.eph.Incref(id, 1)
		tx.ephDeltas[id]++
	})
	tx.reads[k] = v
}

// AssumeKey records an expected current value for k without reading it.
// Asserting a different value for a key already recorded is a
// programmer error.
func (tx *Transaction) AssumeKey(k, v []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	key := string(k)
	if existing, ok := tx.reads[key]; ok {
		if !valueEqual(existing, v) {
			return coreerrors.ErrConflictingAssumption
		}
		return nil
	}
	tx.reads[key] = v
	return nil
}

// WriteKey records a pending write; subsequent reads of k within this
// transaction observe v.
func (tx *Transaction) WriteKey(k, v []byte) error {
	if err := kv.ValidateKey(k); err != nil {
		return err
	}
	if err := kv.ValidateValue(v); err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writes[string(k)] = v
	return nil
}

// StowResource buffers data in the resource store and charges the
// refcount it takes to this transaction, to be released on Drop.
func (tx *Transaction) StowResource(data []byte) chash.Hash {
	h := tx.resources.Stow(data)
	tx.mu.Lock()
	tx.ephDeltas[h.EphemeronID()]++
	tx.mu.Unlock()
	return h
}

// Stow is StowResource under the name lsm.Loader expects, so a
// Transaction can stand in for a bare *resource.Store when compacting
// an LSM-tree: every subtree stowed during compaction is charged to
// this transaction and released on Drop, instead of rooting it forever.
func (tx *Transaction) Stow(data []byte) chash.Hash {
	return tx.StowResource(data)
}

// Load reads a resource by hash without taking an ephemeral charge,
// satisfying lsm.Loader.
func (tx *Transaction) Load(h chash.Hash) ([]byte, error) {
	return tx.resources.Load(h)
}

// Commit submits this transaction's reads and writes to the underlying
// façade and returns a future of the outcome.
func (tx *Transaction) Commit() (<-chan bool, error) {
	tx.mu.Lock()
	reads := cloneMap(tx.reads)
	writes := cloneMap(tx.writes)
	tx.mu.Unlock()
	return tx.kv.AtomicUpdate(reads, writes)
}

// Checkpoint commits, and on success folds writes into reads and
// recomputes ephemeral charges from the new reads set only — discarding
// charges tied to resources no longer mentioned by any tracked value.
func (tx *Transaction) Checkpoint() (bool, error) {
	done, err := tx.Commit()
	if err != nil {
		return false, err
	}
	ok := <-done
	if !ok {
		return false, nil
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	for k, v := range tx.writes {
		tx.reads[k] = v
	}
	tx.writes = make(map[string][]byte)

	old := tx.ephDeltas
	tx.ephDeltas = make(map[uint64]int64)
	for id, delta := range old {
		tx.eph.Decref(id, delta)
	}
	for _, v := range tx.reads {
		chash.IterHashDeps(v, func(h chash.Hash) {
			id := h.EphemeronID()
			tx.eph.Incref(id, 1)
			tx.ephDeltas[id]++
		})
	}
	return true, nil
}

// Drop releases every ephemeral charge this transaction holds. Call
// when a transaction is abandoned without a final Checkpoint, and after
// a terminal Commit once its results are no longer needed.
func (tx *Transaction) Drop() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for id, delta := range tx.ephDeltas {
		tx.eph.Decref(id, delta)
	}
	tx.ephDeltas = make(map[uint64]int64)
}

func cloneMap(m map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func valueEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return string(a) == string(b)
}
