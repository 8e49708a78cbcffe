// Package observability provides metrics and tracing for the lifecycle engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts decide calls by requested decision and outcome.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_decisions_total",
		Help: "Total number of decide operations by decision and outcome",
	}, []string{"decision", "outcome"})

	// SuspiciousActivitiesTotal counts detected suspicious-activity entries by kind.
	SuspiciousActivitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_suspicious_activities_total",
		Help: "Total number of suspicious activity entries recorded",
	}, []string{"kind", "action_type"})

	// AutoRejectionsTotal counts requests rejected because the event date passed.
	AutoRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_auto_rejections_total",
		Help: "Total number of system auto-rejections",
	}, []string{"trigger"})

	// BreachesMarkedTotal counts requests marked breached by the sweep.
	BreachesMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_sla_breaches_marked_total",
		Help: "Total number of requests marked SLA-breached by the sweep",
	})

	// SweepDuration records the latency of each sweep run.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_sla_sweep_duration_seconds",
		Help:    "SLA breach sweep duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SweepRunsTotal counts sweep runs by result (ok, error, skipped).
	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_sla_sweep_runs_total",
		Help: "Total number of SLA sweep runs by result",
	}, []string{"result"})

	// ClassifierLatency records anomaly classifier round-trip latency.
	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_classifier_latency_seconds",
		Help:    "Anomaly classifier call latency in seconds",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5},
	})

	// ClassifierFailures counts classifier errors by reason.
	ClassifierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_classifier_failures_total",
		Help: "Total number of anomaly classifier failures",
	}, []string{"reason"})

	// ClassifierDegradedTotal counts decisions completed without anomaly detection.
	ClassifierDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_classifier_degraded_total",
		Help: "Total number of decisions completed without the anomaly classifier",
	})

	// CacheLookups counts cache-aside lookups by cache name and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_cache_lookups_total",
		Help: "Total number of cache lookups by result",
	}, []string{"cache", "result"})

	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
