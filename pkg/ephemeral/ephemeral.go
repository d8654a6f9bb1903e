// Package ephemeral implements the in-process ephemeral root table: an
// approximate reference count, keyed by a 64-bit digest of a resource
// hash, that keeps recently referenced resources alive across the
// live/stored boundary so the garbage collector never reclaims a
// resource a client might still be about to Load.
package ephemeral

import (
	"fmt"
	"sync"
)

// Table is a shared, mutex-guarded refcount keyed by ephemeron id.
// Collisions between distinct hashes that share an id are permitted and
// safe: the table only over-approximates liveness, which retards GC but
// never breaks correctness.
type Table struct {
	mu     sync.Mutex
	counts map[uint64]int64
}

// New creates an empty ephemeral root table.
func New() *Table {
	return &Table{counts: make(map[uint64]int64)}
}

// Incref adds delta to id's counter. delta must be positive.
func (t *Table) Incref(id uint64, delta int64) {
	if delta <= 0 {
		panic(fmt.Sprintf("ephemeral: Incref delta must be positive, got %d", delta))
	}
	t.mu.Lock()
	t.counts[id] += delta
	t.mu.Unlock()
}

// Decref subtracts delta from id's counter. delta must be positive and
// must not drive the counter negative — doing so is a programmer error
// (a double-release), not a runtime condition to tolerate.
func (t *Table) Decref(id uint64, delta int64) {
	if delta <= 0 {
		panic(fmt.Sprintf("ephemeral: Decref delta must be positive, got %d", delta))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.counts[id] - delta
	if n < 0 {
		panic(fmt.Sprintf("ephemeral: refcount for id %x went negative", id))
	}
	if n == 0 {
		delete(t.counts, id)
	} else {
		t.counts[id] = n
	}
}

// AddMany increments every id in deltas atomically with respect to
// readers of the table.
func (t *Table) AddMany(deltas map[uint64]int64) {
	if len(deltas) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, d := range deltas {
		if d <= 0 {
			continue
		}
		t.counts[id] += d
	}
}

// RemoveMany decrements every id in deltas atomically with respect to
// readers of the table.
func (t *Table) RemoveMany(deltas map[uint64]int64) {
	if len(deltas) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, d := range deltas {
		if d <= 0 {
			continue
		}
		n := t.counts[id] - d
		if n < 0 {
			panic(fmt.Sprintf("ephemeral: refcount for id %x went negative", id))
		}
		if n == 0 {
			delete(t.counts, id)
		} else {
			t.counts[id] = n
		}
	}
}

// IsRooted reports whether id currently has a positive count.
func (t *Table) IsRooted(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[id] > 0
}

// Len reports the number of distinct ids currently rooted, for metrics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}
