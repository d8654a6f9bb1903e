// Package coremetrics exposes Prometheus instrumentation for the store:
// package-level collectors registered in init, plus a Timer helper for
// histogram observations.
package coremetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Committer metrics
	CommitterBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coredb_committer_batch_size",
			Help:    "Number of proposals drained into a single commit batch",
			Buckets: prometheus.LinearBuckets(1, 4, 8),
		},
	)

	CommitterProposalsValidated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_committer_proposals_validated_total",
			Help: "Total number of proposals whose read assumptions held",
		},
	)

	CommitterProposalsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_committer_proposals_failed_total",
			Help: "Total number of proposals rejected for a stale read assumption",
		},
	)

	CommitterResourcesFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_committer_resources_flushed_total",
			Help: "Total number of pending resources written to the backend",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coredb_commit_duration_seconds",
			Help:    "Time taken to validate, apply and fsync a commit batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GC metrics
	GCCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coredb_gc_cycle_duration_seconds",
			Help:    "Time taken for one incremental mark-sweep cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	GCCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_gc_cycles_total",
			Help: "Total number of GC cycles completed",
		},
	)

	GCResourcesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_gc_resources_collected_total",
			Help: "Total number of resources reclaimed by GC",
		},
	)

	GCResourcesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coredb_gc_resources_live",
			Help: "Number of resources marked live in the most recent GC cycle",
		},
	)

	GCMarkIncompleteTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_gc_mark_incomplete_total",
			Help: "Total number of GC cycles that withheld the sweep because the resource-dependency mark did not finish within its fanout budget",
		},
	)

	// LSM metrics
	LSMCompactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coredb_lsm_compactions_total",
			Help: "Total number of LSM node compactions performed",
		},
	)

	LSMCompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coredb_lsm_compaction_duration_seconds",
			Help:    "Time taken to compact an LSM node's update buffer",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Resource store metrics
	ResourcesPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coredb_resources_pending",
			Help: "Number of resources currently buffered in memory awaiting flush",
		},
	)

	// Key/value facade metrics
	KVOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coredb_kv_operations_total",
			Help: "Total number of key/value operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(CommitterBatchSize)
	prometheus.MustRegister(CommitterProposalsValidated)
	prometheus.MustRegister(CommitterProposalsFailed)
	prometheus.MustRegister(CommitterResourcesFlushed)
	prometheus.MustRegister(CommitDuration)

	prometheus.MustRegister(GCCycleDuration)
	prometheus.MustRegister(GCCyclesTotal)
	prometheus.MustRegister(GCResourcesCollected)
	prometheus.MustRegister(GCResourcesLive)
	prometheus.MustRegister(GCMarkIncompleteTotal)

	prometheus.MustRegister(LSMCompactionsTotal)
	prometheus.MustRegister(LSMCompactionDuration)

	prometheus.MustRegister(ResourcesPending)

	prometheus.MustRegister(KVOperationsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer helps time an operation and record it to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
