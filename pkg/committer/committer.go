package committer

import (
	"bytes"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/coremetrics"
	"github.com/corelang/store/pkg/corelog"
	"github.com/corelang/store/pkg/resource"
	"github.com/rs/zerolog"
)

// proposal is a single transaction's commit request. resourceDeletes
// carries GC's sweep results: resources-bucket keys to remove in the
// same atomic transaction as any key writes in the batch.
type proposal struct {
	reads           map[string][]byte
	writes          map[string][]byte
	resourceDeletes [][]byte
	done            chan bool
}

// Committer serializes all writes to a Backend through one goroutine.
type Committer struct {
	backend   *backend.Backend
	resources *resource.Store
	logger    zerolog.Logger

	proposalCh chan *proposal
	stopCh     chan struct{}
	stoppedCh  chan struct{}

	poisoned atomic.Bool
}

// New creates a Committer over backend b, flushing resource store rs's
// pending buffer on every cycle. Call Start to begin processing.
func New(b *backend.Backend, rs *resource.Store) *Committer {
	return &Committer{
		backend:    b,
		resources:  rs,
		logger:     corelog.WithComponent("committer"),
		proposalCh: make(chan *proposal, 256),
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Start begins the committer's run loop in its own goroutine.
func (c *Committer) Start() {
	go c.run()
}

// Stop signals the run loop to exit and waits for it to do so. Any
// proposals still queued are abandoned unresolved: their futures never
// receive a value.
func (c *Committer) Stop() {
	close(c.stopCh)
	<-c.stoppedCh
}

// Poisoned reports whether a persistent backend failure has disabled
// this committer. Once poisoned, it never recovers; a fresh Open is
// required.
func (c *Committer) Poisoned() bool {
	return c.poisoned.Load()
}

// Submit enqueues a proposal and returns a channel that receives exactly
// one value: true if every read assumption held and the writes are
// durable, false otherwise. Submit never blocks the caller beyond
// enqueueing (unless the internal queue is full) and never returns an
// error — commit failure is reported through the future, since an
// optimistic-conflict rejection is an ordinary outcome, not a fault.
func (c *Committer) Submit(reads, writes map[string][]byte) <-chan bool {
	done := make(chan bool, 1)
	if c.Poisoned() {
		done <- false
		close(done)
		return done
	}
	p := &proposal{reads: reads, writes: writes, done: done}
	select {
	case c.proposalCh <- p:
	case <-c.stopCh:
		done <- false
		close(done)
	}
	return done
}

// SubmitResourceDeletion enqueues a batch of resources-bucket keys for
// deletion, serialized through the same write path as ordinary key
// writes so a sweep never races a concurrent commit.
func (c *Committer) SubmitResourceDeletion(keys [][]byte) <-chan bool {
	done := make(chan bool, 1)
	if c.Poisoned() {
		done <- false
		close(done)
		return done
	}
	p := &proposal{resourceDeletes: keys, done: done}
	select {
	case c.proposalCh <- p:
	case <-c.stopCh:
		done <- false
		close(done)
	}
	return done
}

func (c *Committer) run() {
	defer close(c.stoppedCh)
	for {
		select {
		case p := <-c.proposalCh:
			batch := c.drainBatch(p)
			c.processBatch(batch)
		case <-c.stopCh:
			return
		}
	}
}

// drainBatch collects first (the proposal that woke the loop) plus
// every proposal already queued, without blocking.
func (c *Committer) drainBatch(first *proposal) []*proposal {
	batch := []*proposal{first}
	for {
		select {
		case p := <-c.proposalCh:
			batch = append(batch, p)
		default:
			return batch
		}
	}
}

// valueEqual treats a missing key and an empty value as equivalent:
// unbound keys read back as a nil slice.
func valueEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return bytes.Equal(a, b)
}

func (c *Committer) processBatch(batch []*proposal) {
	coremetrics.CommitterBatchSize.Observe(float64(len(batch)))

	var validated, failed []*proposal

	err := c.backend.View(func(tx *bolt.Tx) error {
		dataBucket := tx.Bucket(backend.BucketData)
		// overlay of writes from already-validated proposals earlier in
		// this same batch, so later proposals in the batch validate
		// against each other's effects, not just the last fsynced state.
		overlay := make(map[string][]byte)

		for _, p := range batch {
			ok := true
			for k, assumed := range p.reads {
				var current []byte
				if v, inOverlay := overlay[k]; inOverlay {
					current = v
				} else {
					current = dataBucket.Get([]byte(k))
				}
				if !valueEqual(current, assumed) {
					ok = false
					break
				}
			}
			if ok {
				validated = append(validated, p)
				for k, v := range p.writes {
					overlay[k] = v
				}
			} else {
				failed = append(failed, p)
			}
		}
		return nil
	})
	if err != nil {
		retryErr := c.backend.Update(func(tx *bolt.Tx) error { return nil })
		if retryErr != nil {
			c.poison(retryErr)
		}
		c.failBatch(batch, err)
		return
	}

	var flushed []chash.Hash
	applyErr := c.backend.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(backend.BucketData)
		resBucket := tx.Bucket(backend.BucketResources)
		for _, p := range validated {
			for k, v := range p.writes {
				if len(v) == 0 {
					if err := bucket.Delete([]byte(k)); err != nil {
						return err
					}
					continue
				}
				if err := bucket.Put([]byte(k), v); err != nil {
					return err
				}
			}
			for _, rk := range p.resourceDeletes {
				if err := resBucket.Delete(rk); err != nil {
					return err
				}
			}
		}
		fh, err := c.resources.FlushPending(tx)
		if err != nil {
			return err
		}
		flushed = fh
		return nil
	})

	if applyErr != nil {
		c.logger.Error().Err(applyErr).Msg("commit batch failed, retrying with empty write")
		retryErr := c.backend.Update(func(tx *bolt.Tx) error { return nil })
		if retryErr != nil {
			c.poison(retryErr)
		}
		c.failBatch(batch, applyErr)
		return
	}

	c.resources.PruneFlushed(flushed)
	coremetrics.CommitterResourcesFlushed.Add(float64(len(flushed)))

	for _, p := range validated {
		p.done <- true
		close(p.done)
	}
	for _, p := range failed {
		p.done <- false
		close(p.done)
	}
	coremetrics.CommitterProposalsValidated.Add(float64(len(validated)))
	coremetrics.CommitterProposalsFailed.Add(float64(len(failed)))
}

func (c *Committer) failBatch(batch []*proposal, err error) {
	c.logger.Error().Err(err).Msg("commit batch failed")
	for _, p := range batch {
		p.done <- false
		close(p.done)
	}
}

func (c *Committer) poison(err error) {
	if c.poisoned.CompareAndSwap(false, true) {
		c.logger.Error().Err(err).Msg("committer poisoned after repeated backend failure")
	}
}
