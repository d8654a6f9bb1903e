package kv

import (
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/committer"
	"github.com/corelang/store/pkg/coreerrors"
	"github.com/corelang/store/pkg/coremetrics"
)

const (
	MinKeyLen   = 1
	MaxKeyLen   = 255
	MaxValueLen = 1 << 30
)

// ValidateKey reports whether k satisfies the store's key constraints.
func ValidateKey(k []byte) error {
	if len(k) < MinKeyLen || len(k) > MaxKeyLen {
		return coreerrors.ErrInvalidKey
	}
	return nil
}

// ValidateValue reports whether v satisfies the store's value constraints.
func ValidateValue(v []byte) error {
	if len(v) > MaxValueLen {
		return coreerrors.ErrInvalidValue
	}
	return nil
}

// Store is the public key/value façade.
type Store struct {
	backend   *backend.Backend
	committer *committer.Committer
}

// New wires a Store over the given backend and committer.
func New(b *backend.Backend, c *committer.Committer) *Store {
	return &Store{backend: b, committer: c}
}

// ReadKey returns k's current value, or an empty slice if unbound.
func (s *Store) ReadKey(k []byte) ([]byte, error) {
	if err := ValidateKey(k); err != nil {
		return nil, err
	}
	var v []byte
	err := s.backend.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(backend.BucketData).Get(k)
		if raw != nil {
			v = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, coreerrors.ErrBackendFailure
	}
	coremetrics.KVOperationsTotal.WithLabelValues("read_key", "ok").Inc()
	return v, nil
}

// ReadKeys returns the current values for ks, snapshot-consistent across
// the whole call — a single bbolt read transaction backs every lookup.
func (s *Store) ReadKeys(ks [][]byte) ([][]byte, error) {
	for _, k := range ks {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
	}
	out := make([][]byte, len(ks))
	err := s.backend.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(backend.BucketData)
		for i, k := range ks {
			if raw := bucket.Get(k); raw != nil {
				out[i] = append([]byte(nil), raw...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, coreerrors.ErrBackendFailure
	}
	coremetrics.KVOperationsTotal.WithLabelValues("read_keys", "ok").Inc()
	return out, nil
}

// AtomicUpdate submits reads (assumptions) and writes to the Committer,
// returning a future that resolves true iff every assumption held and
// the writes are now durable.
func (s *Store) AtomicUpdate(reads, writes map[string][]byte) (<-chan bool, error) {
	for k, v := range reads {
		if err := ValidateKey([]byte(k)); err != nil {
			return nil, err
		}
		if err := ValidateValue(v); err != nil {
			return nil, err
		}
	}
	for k, v := range writes {
		if err := ValidateKey([]byte(k)); err != nil {
			return nil, err
		}
		if err := ValidateValue(v); err != nil {
			return nil, err
		}
	}
	done := s.committer.Submit(reads, writes)
	coremetrics.KVOperationsTotal.WithLabelValues("atomic_update", "submitted").Inc()
	return done, nil
}

// WriteKey is a blind write: no read assumptions, future of true once
// durable.
func (s *Store) WriteKey(k, v []byte) (<-chan bool, error) {
	return s.AtomicUpdate(nil, map[string][]byte{string(k): v})
}

// Sync blocks until every write submitted before this call is durable,
// by submitting a no-op proposal and waiting on it. A no-op proposal
// still passes through the same batch as everything queued ahead of it.
// On a poisoned committer it returns ErrPoisoned.
func (s *Store) Sync() error {
	done := s.committer.Submit(nil, nil)
	if ok := <-done; !ok && s.committer.Poisoned() {
		return coreerrors.ErrPoisoned
	}
	return nil
}

// TestReadAssumptions checks the keys of reads in sorted order and
// returns the first one whose current value differs from the assumed
// one, with that current value, or ("", nil, false) if every
// assumption holds.
func (s *Store) TestReadAssumptions(reads map[string][]byte) (string, []byte, bool, error) {
	keys := make([]string, 0, len(reads))
	for k := range reads {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatchKey string
	var mismatchVal []byte
	found := false
	err := s.backend.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(backend.BucketData)
		for _, k := range keys {
			current := bucket.Get([]byte(k))
			assumed := reads[k]
			if !valueEqual(current, assumed) {
				mismatchKey = k
				mismatchVal = append([]byte(nil), current...)
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return "", nil, false, coreerrors.ErrBackendFailure
	}
	return mismatchKey, mismatchVal, found, nil
}

func valueEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return string(a) == string(b)
}

// DiscoverKeys returns up to nMax keys lexicographically following prev
// (or starting from the smallest key if prev is nil) whose value is
// non-empty.
func (s *Store) DiscoverKeys(prev []byte, nMax int) ([][]byte, error) {
	var out [][]byte
	err := s.backend.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(backend.BucketData).Cursor()
		var k, v []byte
		if prev == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(prev)
			if k != nil && string(k) == string(prev) {
				k, v = c.Next()
			}
		}
		for ; k != nil && len(out) < nMax; k, v = c.Next() {
			if len(v) == 0 {
				continue
			}
			out = append(out, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return nil, coreerrors.ErrBackendFailure
	}
	return out, nil
}
