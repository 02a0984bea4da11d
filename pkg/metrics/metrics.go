package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Commit log metrics
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stormdb_commit_duration_seconds",
			Help:    "Time taken by CommitTx's append-and-flush phase",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stormdb_commits_total",
			Help: "Total number of transactions committed, by outcome",
		},
		[]string{"outcome"}, // committed, failed, poisoned
	)

	SegmentRollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stormdb_segment_rolls_total",
			Help: "Total number of commit log segment rollovers",
		},
	)

	RecordRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stormdb_record_rejections_total",
			Help: "Total number of commit log appends rejected for a full commit buffer",
		},
	)

	// Table store / transaction manager metrics
	TxActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stormdb_tx_active",
			Help: "Currently open transactions by kind",
		},
		[]string{"kind"}, // read, write
	)

	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stormdb_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire the committed-state guard",
			Buckets: prometheus.DefBuckets,
		},
	)

	RowsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stormdb_rows_total",
			Help: "Committed row count per table",
		},
		[]string{"table"},
	)

	UniqueViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stormdb_unique_violations_total",
			Help: "Total number of unique-index insert conflicts, by table",
		},
		[]string{"table"},
	)

	// Index layer metrics
	IndexKeyBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stormdb_index_key_bytes",
			Help: "Bytes occupied by live canonical index keys, by index",
		},
		[]string{"index"},
	)

	RangeScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stormdb_range_scan_duration_seconds",
			Help:    "Time taken by an index-backed range scan",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	// Snapshot metrics
	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stormdb_snapshot_duration_seconds",
			Help:    "Time taken to write a periodic snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stormdb_snapshots_total",
			Help: "Total number of snapshots written",
		},
	)

	// Component health (fed by the registry in health.go)
	ComponentUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stormdb_component_up",
			Help: "Whether an engine component is usable (1) or failed (0)",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(SegmentRollsTotal)
	prometheus.MustRegister(RecordRejectionsTotal)
	prometheus.MustRegister(TxActive)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(UniqueViolationsTotal)
	prometheus.MustRegister(IndexKeyBytes)
	prometheus.MustRegister(RangeScanDuration)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(ComponentUp)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
