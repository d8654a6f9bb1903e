// Package coredb is the top-level facade wiring every layer of the
// store together: backend, resource store, ephemeral root table,
// committer, garbage collector, key/value façade and LSM-tree helpers.
// Open constructs each subsystem bottom-up, starts the background
// workers, and hands back one handle with a Start-on-open/Stop-on-close
// lifecycle.
package coredb

import (
	"fmt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/coreconfig"
	"github.com/corelang/store/pkg/coreerrors"
	"github.com/corelang/store/pkg/corelog"
	"github.com/corelang/store/pkg/committer"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/corelang/store/pkg/gc"
	"github.com/corelang/store/pkg/kv"
	"github.com/corelang/store/pkg/lsm"
	"github.com/corelang/store/pkg/resource"
	"github.com/corelang/store/pkg/txn"
)

// DB is an open handle onto a database directory, owning the
// committer and GC background workers for its lifetime.
type DB struct {
	opts                coreconfig.Options
	backend             *backend.Backend
	resources           *resource.Store
	ephemeral           *ephemeral.Table
	committer           *committer.Committer
	gc                  *gc.Collector
	kv                  *kv.Store
	compactionThreshold int
}

// Open validates opts, opens the backend, and starts the committer and
// GC workers. The returned DB must eventually be closed with Close.
func Open(opts coreconfig.Options) (*DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	corelog.Init(corelog.Config{
		Level:      corelog.Level(opts.LogLevel),
		JSONOutput: opts.LogJSON,
	})

	b, err := backend.Open(backend.Options{
		Path:       opts.Path,
		MaxSizeMB:  opts.MaxSizeMB,
		CacheBytes: opts.CacheBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("coredb: open failed: %w", err)
	}

	eph := ephemeral.New()
	rs := resource.New(b, eph)
	c := committer.New(b, rs)
	c.Start()

	collector := gc.New(b, rs, eph, c, gc.Options{
		Interval:      opts.GCInterval,
		FanoutPerStep: opts.GCFanoutPerStep,
	})
	collector.Start()

	threshold := opts.CompactionThreshold
	if threshold <= 0 {
		threshold = lsm.DefaultCompactionThreshold
	}

	db := &DB{
		opts:                opts,
		backend:             b,
		resources:           rs,
		ephemeral:           eph,
		committer:           c,
		gc:                  collector,
		kv:                  kv.New(b, c),
		compactionThreshold: threshold,
	}
	corelog.WithComponent("coredb").Info().Str("path", opts.Path).Msg("database opened")
	return db, nil
}

// Close stops the background workers, in reverse of their start order,
// and closes the backend. Close does not wait for an in-flight GC cycle
// to finish; the next Open resumes from whatever state was durable.
func (db *DB) Close() error {
	db.gc.Stop()
	db.committer.Stop()
	if err := db.backend.Close(); err != nil {
		return fmt.Errorf("coredb: close failed: %w", err)
	}
	return nil
}

// NewTransaction begins a client transaction over this database.
func (db *DB) NewTransaction() *txn.Transaction {
	return txn.New(db.kv, db.resources, db.ephemeral)
}

// KV returns the underlying key/value façade for callers that don't
// need transactional read-assumption tracking (e.g. the CLI's blind
// put/get verbs).
func (db *DB) KV() *kv.Store {
	return db.kv
}

// Resources returns the underlying resource store, satisfying
// lsm.Loader directly.
func (db *DB) Resources() *resource.Store {
	return db.resources
}

// Poisoned reports whether the committer has permanently disabled
// writes after a persistent backend failure.
func (db *DB) Poisoned() bool {
	return db.committer.Poisoned()
}

// GCOnce runs a single incremental mark-sweep pass synchronously,
// independent of the background ticker — used by the administrative
// CLI's "gc" verb and by tests asserting end-to-end store behavior.
func (db *DB) GCOnce() error {
	if db.Poisoned() {
		return coreerrors.ErrPoisoned
	}
	return db.gc.Cycle()
}

// Stats reports on-disk size and free-page count for the "stats" verb.
func (db *DB) Stats() (backend.Stats, error) {
	return db.backend.Stats()
}

// LoadTree reads the LSM-tree persisted under key within tx, returning
// the empty tree if the key is unbound.
func (db *DB) LoadTree(tx *txn.Transaction, key []byte) (*lsm.Tree, error) {
	v, err := tx.ReadKey(key)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return lsm.Empty(), nil
	}
	return lsm.Deserialize(v)
}

// SaveTree compacts tree against this database's configured threshold
// and records its serialized form as key's value within tx. Compaction
// is charged to tx rather than stowed directly against the resource
// store, so a newly stowed subtree's ephemeral root is released when
// the caller later drops tx; the subtree stays reachable afterward only
// through the {hash} literal embedded in key's committed value, exactly
// like any other resource a key/value pair references. The caller
// still owns committing and dropping tx.
func (db *DB) SaveTree(tx *txn.Transaction, key []byte, tree *lsm.Tree) error {
	compacted, err := tree.Compact(tx, db.compactionThreshold)
	if err != nil {
		return fmt.Errorf("coredb: compact failed: %w", err)
	}
	return tx.WriteKey(key, compacted.Serialize())
}
