package metrics

import "time"

// Collector is the capability storage code depends on to report events.
// Storage packages (pkg/datastore, pkg/relational, pkg/snapshot) only ever
// see this interface, never the package-level prometheus vars directly, so
// a caller embedding stormdb as a library can supply its own implementation
// (or a no-op one in tests) without pulling in the default registry.
type Collector interface {
	ObserveCommit(outcome string, d time.Duration)
	IncSegmentRoll()
	IncRecordRejection()
	SetTxActive(kind string, n int)
	ObserveLockWait(d time.Duration)
	SetRowCount(table string, n int)
	IncUniqueViolation(table string)
	SetIndexKeyBytes(index string, n int)
	ObserveRangeScan(index string, d time.Duration)
	ObserveSnapshot(d time.Duration)
}

// PrometheusCollector is the default Collector, backed by the package-level
// metrics registered against prometheus.DefaultRegisterer in metrics.go.
type PrometheusCollector struct{}

// NewPrometheusCollector returns the default, process-global Collector.
func NewPrometheusCollector() PrometheusCollector { return PrometheusCollector{} }

func (PrometheusCollector) ObserveCommit(outcome string, d time.Duration) {
	CommitsTotal.WithLabelValues(outcome).Inc()
	if outcome == "committed" {
		CommitDuration.Observe(d.Seconds())
	}
}

func (PrometheusCollector) IncSegmentRoll()     { SegmentRollsTotal.Inc() }
func (PrometheusCollector) IncRecordRejection() { RecordRejectionsTotal.Inc() }

func (PrometheusCollector) SetTxActive(kind string, n int) {
	TxActive.WithLabelValues(kind).Set(float64(n))
}

func (PrometheusCollector) ObserveLockWait(d time.Duration) {
	LockWaitDuration.Observe(d.Seconds())
}

func (PrometheusCollector) SetRowCount(table string, n int) {
	RowsTotal.WithLabelValues(table).Set(float64(n))
}

func (PrometheusCollector) IncUniqueViolation(table string) {
	UniqueViolationsTotal.WithLabelValues(table).Inc()
}

func (PrometheusCollector) SetIndexKeyBytes(index string, n int) {
	IndexKeyBytes.WithLabelValues(index).Set(float64(n))
}

func (PrometheusCollector) ObserveRangeScan(index string, d time.Duration) {
	RangeScanDuration.WithLabelValues(index).Observe(d.Seconds())
}

func (PrometheusCollector) ObserveSnapshot(d time.Duration) {
	SnapshotDuration.Observe(d.Seconds())
	SnapshotsTotal.Inc()
}

// NoopCollector discards every event, for tests and embedders that don't
// want a dependency on the default prometheus registry.
type NoopCollector struct{}

func (NoopCollector) ObserveCommit(string, time.Duration) {}
func (NoopCollector) IncSegmentRoll()                     {}
func (NoopCollector) IncRecordRejection()                 {}
func (NoopCollector) SetTxActive(string, int)             {}
func (NoopCollector) ObserveLockWait(time.Duration)       {}
func (NoopCollector) SetRowCount(string, int)             {}
func (NoopCollector) IncUniqueViolation(string)           {}
func (NoopCollector) SetIndexKeyBytes(string, int)        {}
func (NoopCollector) ObserveRangeScan(string, time.Duration) {}
func (NoopCollector) ObserveSnapshot(time.Duration)       {}
