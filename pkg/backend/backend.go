package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names partitioning the single bbolt file into its subspaces.
var (
	BucketData      = []byte("data")
	BucketResources = []byte("resources")
	BucketRoots     = []byte("roots")
)

// Options configures Open.
type Options struct {
	// Path is the database directory. It is created if missing.
	Path string
	// MaxSizeMB bounds the backend file size. Zero means unbounded.
	MaxSizeMB int
	// CacheBytes is carried for callers; neither the backend nor the
	// LSM-tree reads it. Remote subtrees are loaded from the resource
	// store on each access, with no node cache.
	CacheBytes int
	// OpenTimeout bounds how long Open waits to acquire the file lock
	// before giving up. Zero means bbolt's default (block forever).
	OpenTimeout time.Duration
}

// Backend is a single open handle onto the on-disk store.
type Backend struct {
	db   *bolt.DB
	opts Options
}

// DBFileName is the name of the bbolt file within the database directory.
const DBFileName = "core.db"

// Open creates the database directory if necessary, opens (and locks)
// the backend file, and ensures the data/resources/roots buckets exist.
func Open(opts Options) (*Backend, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("backend: Path must not be empty")
	}
	if err := os.MkdirAll(opts.Path, 0755); err != nil {
		return nil, fmt.Errorf("backend: failed to create data directory: %w", err)
	}

	boltOpts := &bolt.Options{Timeout: opts.OpenTimeout}
	db, err := bolt.Open(filepath.Join(opts.Path, DBFileName), 0600, boltOpts)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{BucketData, BucketResources, BucketRoots} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{db: db, opts: opts}, nil
}

// Close releases the file lock and closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// View runs fn in a read-only transaction over a consistent, zero-copy
// mmap'd snapshot of the file.
func (b *Backend) View(fn func(tx *bolt.Tx) error) error {
	return b.db.View(fn)
}

// Update runs fn in the single read-write transaction, committing and
// fsyncing on success, rolling back on error or panic.
func (b *Backend) Update(fn func(tx *bolt.Tx) error) error {
	if err := b.checkSize(); err != nil {
		return err
	}
	return b.db.Update(fn)
}

// checkSize enforces MaxSizeMB as a soft admission check before a write
// transaction opens; bbolt itself has no notion of a size cap.
func (b *Backend) checkSize() error {
	if b.opts.MaxSizeMB <= 0 {
		return nil
	}
	info, err := os.Stat(b.db.Path())
	if err != nil {
		return nil // can't stat, let bbolt's own write surface the error
	}
	limit := int64(b.opts.MaxSizeMB) * 1024 * 1024
	if info.Size() >= limit {
		return fmt.Errorf("backend: database file has reached max_size_mb=%d", b.opts.MaxSizeMB)
	}
	return nil
}

// Path returns the backend file's path on disk.
func (b *Backend) Path() string {
	return b.db.Path()
}

// Stats summarizes on-disk size for metrics and diagnostics.
type Stats struct {
	SizeBytes int64
	FreePages int
}

// Stats reads the current file size and bbolt's free-page count.
func (b *Backend) Stats() (Stats, error) {
	info, err := os.Stat(b.db.Path())
	if err != nil {
		return Stats{}, fmt.Errorf("backend: stat failed: %w", err)
	}
	s := b.db.Stats()
	return Stats{SizeBytes: info.Size(), FreePages: s.FreePageN}, nil
}
