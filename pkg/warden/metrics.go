package warden

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for log-warden, grouped by pipeline
// NOTE: No assistant labels are used to avoid high cardinality issues
type Metrics struct {
	Collection CollectionMetrics
	Audit      AuditMetrics
}

// CollectionMetrics tracks the collection pipeline
type CollectionMetrics struct {
	// RunsTotal tracks collection runs with status
	RunsTotal *prometheus.CounterVec // labels: status (success/failed)

	// LogsFetched tracks raw records fetched from the source
	LogsFetched prometheus.Counter

	// LogsSaved tracks records newly inserted into the store
	LogsSaved prometheus.Counter

	// LogsDuplicate tracks records skipped as already stored
	LogsDuplicate prometheus.Counter

	// LogsDropped tracks records dropped by per-record transform failures
	LogsDropped prometheus.Counter

	// RateLimitRemaining is the most recent X-RateLimit-Remaining seen
	RateLimitRemaining prometheus.Gauge

	// RunDuration tracks end-to-end collection run time
	RunDuration prometheus.Histogram
}

// AuditMetrics tracks the audit/reconciliation pipeline
type AuditMetrics struct {
	// RunsTotal tracks audit runs with final status
	RunsTotal *prometheus.CounterVec // labels: status (SUCCESS/PARTIAL/FAILURE/SKIPPED)

	// MissingLogs tracks records found missing during cross-check
	MissingLogs prometheus.Counter

	// RepairedLogs tracks missing records replayed into the store
	RepairedLogs prometheus.Counter

	// RunDuration tracks end-to-end audit run time
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry
// This is useful for testing to avoid conflicts with the default registry
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Collection: CollectionMetrics{
			RunsTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "log_warden_collection_runs_total",
					Help: "Total number of collection pipeline runs",
				},
				[]string{"status"},
			),
			LogsFetched: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_logs_fetched_total",
					Help: "Total number of raw log records fetched from the source",
				},
			),
			LogsSaved: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_logs_saved_total",
					Help: "Total number of standardized records newly inserted",
				},
			),
			LogsDuplicate: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_logs_duplicate_total",
					Help: "Total number of submitted records already present in the store",
				},
			),
			LogsDropped: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_logs_dropped_total",
					Help: "Total number of records dropped by transform failures",
				},
			),
			RateLimitRemaining: factory.NewGauge(
				prometheus.GaugeOpts{
					Name: "log_warden_source_rate_limit_remaining",
					Help: "Most recent rate-limit remaining value reported by the source",
				},
			),
			RunDuration: factory.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "log_warden_collection_run_duration_seconds",
					Help:    "End-to-end collection run time (fetch + transform + persist)",
					Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}, // 100ms to 5min
				},
			),
		},

		Audit: AuditMetrics{
			RunsTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "log_warden_audit_runs_total",
					Help: "Total number of audit runs by final status",
				},
				[]string{"status"},
			),
			MissingLogs: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_audit_missing_logs_total",
					Help: "Total number of fetched records found missing from the store",
				},
			),
			RepairedLogs: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "log_warden_audit_repaired_logs_total",
					Help: "Total number of missing records replayed into the store",
				},
			),
			RunDuration: factory.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "log_warden_audit_run_duration_seconds",
					Help:    "End-to-end audit run time",
					Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}, // 100ms to 10min
				},
			),
		},
	}
}
