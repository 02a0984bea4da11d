/*
Package metrics provides Prometheus metrics collection and exposition for stormdb.

The metrics package defines and registers stormdb's metrics using the Prometheus
client library, providing observability into commit log throughput, transaction
lock contention, index write volume, and snapshot cost. Metrics are exposed via
an HTTP endpoint for scraping by Prometheus servers. Storage code never touches
these package-level variables directly, it depends on the Collector interface
(see collector.go), so a caller embedding this engine as a library can swap in
NoopCollector and pull in none of this.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init              │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (tx active, row count)│         │
	│  │  Counter: Monotonic increases (commits)     │          │
	│  │  Histogram: Distributions (commit latency)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Commit log: duration, commits, segments    │          │
	│  │  Transaction manager: active, lock wait     │          │
	│  │  Table store: row count, unique violations  │          │
	│  │  Index: key bytes written, range scans      │          │
	│  │  Snapshot: duration, count                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Collector interface                │          │
	│  │  - PrometheusCollector (backed by the above)│          │
	│  │  - NoopCollector (tests, embedders)          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: active transaction count, committed row count per table
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: commits total, unique violations total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: commit duration, range scan duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

Collector Interface:
  - storage code depends on Collector, not the package vars directly
  - PrometheusCollector wires method calls to the vars below
  - NoopCollector discards everything, used by default in cmd/stormdb

# Metrics Catalog

Commit Log Metrics:

stormdb_commit_duration_seconds:
  - Type: Histogram
  - Description: Time taken by CommitTx's append-and-flush phase

stormdb_commits_total{outcome}:
  - Type: Counter
  - Description: Total transactions committed, by outcome
  - Labels: outcome (committed, failed, poisoned)

stormdb_segment_rolls_total:
  - Type: Counter
  - Description: Total number of commit log segment rollovers

stormdb_record_rejections_total:
  - Type: Counter
  - Description: Total commit log appends rejected for a full commit buffer

Transaction Manager Metrics:

stormdb_tx_active{kind}:
  - Type: Gauge
  - Description: Currently open transactions by kind
  - Labels: kind (read, write)

stormdb_lock_wait_duration_seconds:
  - Type: Histogram
  - Description: Time spent waiting to acquire the committed-state guard

Table Store Metrics:

stormdb_rows_total{table}:
  - Type: Gauge
  - Description: Committed row count per table
  - Labels: table

stormdb_unique_violations_total{table}:
  - Type: Counter
  - Description: Total unique-index insert conflicts, by table
  - Labels: table

Index Layer Metrics:

stormdb_index_key_bytes{index}:
  - Type: Gauge
  - Description: Bytes occupied by live canonical index keys, by index
  - Labels: index

stormdb_range_scan_duration_seconds{index}:
  - Type: Histogram
  - Description: Time taken by an index-backed range scan
  - Labels: index

Snapshot Metrics:

stormdb_snapshot_duration_seconds:
  - Type: Histogram
  - Description: Time taken to write a periodic snapshot

stormdb_snapshots_total:
  - Type: Counter
  - Description: Total number of snapshots written

# Usage

Through the Collector interface (the only way storage code should touch metrics):

	import "github.com/cuemby/stormdb/pkg/metrics"

	var collector metrics.Collector = metrics.NewPrometheusCollector()

	timer := metrics.NewTimer()
	// ... perform a commit ...
	collector.ObserveCommit("committed", timer.Duration())
	collector.SetTxActive("write", 1)
	collector.SetRowCount("bench_data", 1000)

Direct package-var access (only inside collector.go's PrometheusCollector methods):

	metrics.CommitsTotal.WithLabelValues("committed").Inc()
	metrics.RowsTotal.WithLabelValues("bench_data").Set(1000)
	metrics.CommitDuration.Observe(0.003)

Exposing the endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/relational: Reports commit duration/outcome, lock wait, tx active, row counts, unique violations, index key bytes, range scan duration, snapshot duration and count
  - pkg/commitlog: Reports segment rolls and record rejections through Options callbacks that pkg/relational wires to the Collector
  - pkg/datastore: Reports nothing; it does not import this package
  - cmd/stormdb: Uses NoopCollector by default (CLI diagnostic tool, not a long-lived server)
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Capability Interface Pattern:
  - Storage code depends on the Collector interface, never prometheus.* types
  - Lets library embedders opt out of the default Prometheus registry entirely
  - NoopCollector satisfies the interface with empty method bodies

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (table name, index name, outcome)
  - Avoid high-cardinality labels (row IDs, tx offsets, timestamps)
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration/ObserveDurationVec or read Duration() explicitly
  - Supports both simple and vector histograms

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact relative to a commit's fsync cost

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination (e.g. one per table): ~100 bytes
  - Total: well under 1MB for a typical single-process database

Scrape Performance:
  - Metrics gathering: ~1-5ms for a full scrape
  - Recommendation: scrape interval >= 15s
  - Concurrent scrapes: safe (read-only)

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

Metrics Stay At Zero:
  - Symptom: Collector calls made but /metrics never changes
  - Cause: Caller constructed NoopCollector instead of PrometheusCollector
  - Solution: Pass metrics.NewPrometheusCollector() to relational.Open

High Cardinality:
  - Symptom: Prometheus memory usage grows unexpectedly
  - Cause: A table or index name label ends up unbounded (e.g. per-query temp tables)
  - Solution: Remove or aggregate the offending label

# Monitoring

Prometheus Queries (PromQL):

Commit Throughput:
  - Commit rate: rate(stormdb_commits_total{outcome="committed"}[1m])
  - p95 commit latency: histogram_quantile(0.95, stormdb_commit_duration_seconds_bucket)
  - Failed commit rate: rate(stormdb_commits_total{outcome="failed"}[5m])

Lock Contention:
  - p95 lock wait: histogram_quantile(0.95, stormdb_lock_wait_duration_seconds_bucket)
  - Active transactions: sum(stormdb_tx_active)

Storage Growth:
  - Row count by table: stormdb_rows_total
  - Unique violation rate: rate(stormdb_unique_violations_total[5m])

Snapshot Cost:
  - p95 snapshot duration: histogram_quantile(0.95, stormdb_snapshot_duration_seconds_bucket)
  - Snapshot rate: rate(stormdb_snapshots_total[1h])

# Alerting Rules

Recommended Prometheus alerts:

Elevated Commit Failure Rate:
  - Alert: rate(stormdb_commits_total{outcome="failed"}[5m]) > 0.1
  - Description: More than 0.1 failed commits per second
  - Action: Check commit log disk space and I/O errors

High Lock Wait:
  - Alert: histogram_quantile(0.95, stormdb_lock_wait_duration_seconds_bucket) > 0.1
  - Description: p95 lock wait exceeds 100ms
  - Action: Check for long-running mutating transactions

Frequent Segment Rolls:
  - Alert: rate(stormdb_segment_rolls_total[5m]) > 1
  - Description: Commit log rolling segments unusually often
  - Action: Check MaxSegmentSize configuration, write volume

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
