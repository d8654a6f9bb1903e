// Package resource implements the content-addressed resource layer:
// immutable binaries identified by their chash.Hash, buffered in memory
// until the Committer flushes them to the backend.
package resource

import (
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/ephemeral"
)

// MissingResourceError is returned by Load when a hash is not present in
// either the in-memory stow buffer or the backend.
type MissingResourceError struct {
	Hash chash.Hash
}

func (e *MissingResourceError) Error() string {
	return "resource: missing resource " + e.Hash.String()
}

// Store maps hashes to bytes, deduplicating identical content and
// buffering newly stowed resources until the Committer flushes them.
type Store struct {
	backend *backend.Backend
	eph     *ephemeral.Table

	mu      sync.Mutex
	pending map[chash.Hash][]byte
}

// New creates a Store over backend b, taking ephemeral refcounts from eph.
func New(b *backend.Backend, eph *ephemeral.Table) *Store {
	return &Store{
		backend: b,
		eph:     eph,
		pending: make(map[chash.Hash][]byte),
	}
}

func resourceKey(h chash.Hash) []byte {
	s := h.String()
	key := make([]byte, 0, len(s)+1)
	key = append(key, '#')
	key = append(key, s...)
	return key
}

// ParseResourceKey recovers the hash encoded in a resources-bucket key,
// for callers (the GC sweep) that enumerate the bucket directly.
func ParseResourceKey(k []byte) (chash.Hash, bool) {
	if len(k) == 0 || k[0] != '#' {
		return chash.Hash{}, false
	}
	h, err := chash.Parse(string(k[1:]))
	if err != nil {
		return chash.Hash{}, false
	}
	return h, true
}

// Stow computes H(bytes), buffers bytes in memory if not already known,
// increments the ephemeral refcount for the hash's id, and returns the
// hash. Stowing identical content twice is idempotent with respect to
// storage (no duplicate bytes are kept) but still increments the
// refcount once per call — the caller is expected to charge that
// increment to a transaction's ephemeral set, which releases it on Drop
// (Commit does not release it).
func (s *Store) Stow(data []byte) chash.Hash {
	h := chash.Sum(data)

	s.mu.Lock()
	if _, known := s.pending[h]; !known && !s.hasOnDisk(h) {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.pending[h] = cp
	}
	s.mu.Unlock()

	s.eph.Incref(h.EphemeronID(), 1)
	return h
}

// TryLoad returns the bytes for h, checking the in-memory buffer first,
// then the backend. It does not take an ephemeral root.
func (s *Store) TryLoad(h chash.Hash) ([]byte, bool) {
	s.mu.Lock()
	if data, ok := s.pending[h]; ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.mu.Unlock()
		return cp, true
	}
	s.mu.Unlock()

	var out []byte
	found := false
	_ = s.backend.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(backend.BucketResources).Get(resourceKey(h))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
			found = true
		}
		return nil
	})
	return out, found
}

// Load is TryLoad but returns a MissingResourceError when h is absent.
func (s *Store) Load(h chash.Hash) ([]byte, error) {
	data, ok := s.TryLoad(h)
	if !ok {
		return nil, &MissingResourceError{Hash: h}
	}
	return data, nil
}

// WithResourceZeroCopy invokes fn with a slice backed either by the
// in-memory stow buffer or, for already-persisted resources, by the
// backend's mmap'd read-transaction buffer. fn must not retain or
// mutate the slice past its own return.
func (s *Store) WithResourceZeroCopy(h chash.Hash, fn func([]byte) error) error {
	s.mu.Lock()
	if data, ok := s.pending[h]; ok {
		s.mu.Unlock()
		return fn(data)
	}
	s.mu.Unlock()

	found := false
	err := s.backend.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(backend.BucketResources).Get(resourceKey(h))
		if v == nil {
			return nil
		}
		found = true
		return fn(v)
	})
	if err != nil {
		return err
	}
	if !found {
		return &MissingResourceError{Hash: h}
	}
	return nil
}

// HasResource reports whether h is known, in memory or on disk.
func (s *Store) HasResource(h chash.Hash) bool {
	s.mu.Lock()
	_, known := s.pending[h]
	s.mu.Unlock()
	if known {
		return true
	}
	return s.hasOnDisk(h)
}

func (s *Store) hasOnDisk(h chash.Hash) bool {
	found := false
	_ = s.backend.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(backend.BucketResources).Get(resourceKey(h)) != nil
		return nil
	})
	return found
}

// FlushPending writes every currently buffered resource into tx's
// resources bucket and returns the hashes written. Called by the
// Committer inside its write transaction.
func (s *Store) FlushPending(tx *bolt.Tx) ([]chash.Hash, error) {
	s.mu.Lock()
	pending := make(map[chash.Hash][]byte, len(s.pending))
	for h, data := range s.pending {
		pending[h] = data
	}
	s.mu.Unlock()

	bucket := tx.Bucket(backend.BucketResources)
	flushed := make([]chash.Hash, 0, len(pending))
	for h, data := range pending {
		if err := bucket.Put(resourceKey(h), data); err != nil {
			return nil, err
		}
		flushed = append(flushed, h)
	}
	return flushed, nil
}

// PruneFlushed drops buffered entries that are both persisted (appear in
// flushed) and no longer ephemerally rooted; they remain recoverable
// from disk and are now eligible for GC like any other resource.
func (s *Store) PruneFlushed(flushed []chash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range flushed {
		if !s.eph.IsRooted(h.EphemeronID()) {
			delete(s.pending, h)
		}
	}
}

// PendingCount reports how many resources are currently buffered in
// memory, for metrics.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
