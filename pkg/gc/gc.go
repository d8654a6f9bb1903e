package gc

import (
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corelang/store/pkg/backend"
	"github.com/corelang/store/pkg/chash"
	"github.com/corelang/store/pkg/committer"
	"github.com/corelang/store/pkg/coremetrics"
	"github.com/corelang/store/pkg/corelog"
	"github.com/corelang/store/pkg/ephemeral"
	"github.com/corelang/store/pkg/resource"
	"github.com/rs/zerolog"
)

const defaultFanoutPerStep = 4096

// Options configures a Collector's pacing.
type Options struct {
	// Interval between sweep cycles. Zero selects a default of 5s.
	Interval time.Duration
	// FanoutPerStep bounds how many resources a single cycle loads while
	// following resource-to-resource references. The scan of key/value
	// pairs for their direct dependencies is not bounded.
	FanoutPerStep int
}

// Collector runs the background mark-sweep loop.
type Collector struct {
	backend   *backend.Backend
	resources *resource.Store
	eph       *ephemeral.Table
	committer *committer.Committer
	logger    zerolog.Logger

	interval      time.Duration
	fanoutPerStep int

	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates a Collector over the given components.
func New(b *backend.Backend, rs *resource.Store, eph *ephemeral.Table, c *committer.Committer, opts Options) *Collector {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	fanout := opts.FanoutPerStep
	if fanout <= 0 {
		fanout = defaultFanoutPerStep
	}
	return &Collector{
		backend:       b,
		resources:     rs,
		eph:           eph,
		committer:     c,
		logger:        corelog.WithComponent("gc"),
		interval:      interval,
		fanoutPerStep: fanout,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the sweep loop in its own goroutine.
func (g *Collector) Start() {
	go g.run()
}

// Stop halts the sweep loop.
func (g *Collector) Stop() {
	close(g.stopCh)
}

func (g *Collector) run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info().Msg("gc started")
	for {
		select {
		case <-ticker.C:
			if err := g.Cycle(); err != nil {
				g.logger.Error().Err(err).Msg("gc cycle failed")
			}
		case <-g.stopCh:
			g.logger.Info().Msg("gc stopped")
			return
		}
	}
}

// Cycle performs one incremental mark-sweep pass: flush the resource
// store's pending buffer through the Committer (which also drops
// buffered entries no longer ephemerally rooted), snapshot the key set,
// mark resources reachable from it (bounded fanout), then delete any
// unreached, unrooted resource through the Committer.
func (g *Collector) Cycle() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	timer := coremetrics.NewTimer()
	defer func() {
		timer.ObserveDuration(coremetrics.GCCycleDuration)
		coremetrics.GCCyclesTotal.Inc()
	}()

	<-g.committer.Submit(nil, nil)

	live, complete, err := g.mark()
	if err != nil {
		return err
	}
	coremetrics.GCResourcesLive.Set(float64(len(live)))
	if !complete {
		coremetrics.GCMarkIncompleteTotal.Inc()
		g.logger.Warn().Msg("gc mark did not finish within its fanout budget, withholding sweep")
		return nil
	}

	toDelete, err := g.sweepCandidates(live)
	if err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}

	done := g.committer.SubmitResourceDeletion(toDelete)
	if ok := <-done; ok {
		coremetrics.GCResourcesCollected.Add(float64(len(toDelete)))
	}
	return nil
}

// mark walks outward from every non-empty key's value, following hash
// dependency chains found in already-loaded resource data. The initial
// scan over every KV value is never bounded — a key/value pair's direct
// dependencies are always retained in full, regardless of how many
// there are. FanoutPerStep bounds only how many resource loads the
// subsequent resource-to-resource recursion performs in one cycle; if
// that budget runs out before the queue drains, mark reports complete
// as false and the caller must withhold the sweep rather than delete
// resources it never got a chance to reach.
func (g *Collector) mark() (map[chash.Hash]bool, bool, error) {
	var queue [][]byte
	err := g.backend.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(backend.BucketData).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 0 {
				continue
			}
			queue = append(queue, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	live := make(map[chash.Hash]bool)
	visited := make(map[chash.Hash]bool)

	// Phase one: every KV value's direct dependencies, unbounded.
	for _, v := range queue {
		chash.IterHashDeps(v, func(h chash.Hash) {
			visited[h] = true
			live[h] = true
		})
	}

	// Phase two: recurse into the resources those dependencies name,
	// bounded to fanoutPerStep resource loads per cycle.
	var resourceQueue [][]byte
	for h := range live {
		if data, ok := g.resources.TryLoad(h); ok {
			resourceQueue = append(resourceQueue, data)
		}
	}

	steps := 0
	for len(resourceQueue) > 0 {
		if steps >= g.fanoutPerStep {
			return live, false, nil
		}
		v := resourceQueue[0]
		resourceQueue = resourceQueue[1:]
		steps++

		chash.IterHashDeps(v, func(h chash.Hash) {
			if visited[h] {
				return
			}
			visited[h] = true
			live[h] = true
			if data, ok := g.resources.TryLoad(h); ok {
				resourceQueue = append(resourceQueue, data)
			}
		})
	}
	return live, true, nil
}

// sweepCandidates enumerates the resources bucket for entries that are
// neither in live nor ephemerally rooted.
func (g *Collector) sweepCandidates(live map[chash.Hash]bool) ([][]byte, error) {
	var toDelete [][]byte
	err := g.backend.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(backend.BucketResources).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			h, ok := resource.ParseResourceKey(k)
			if !ok {
				continue
			}
			if live[h] {
				continue
			}
			if g.eph.IsRooted(h.EphemeronID()) {
				continue
			}
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return nil
	})
	return toDelete, err
}
