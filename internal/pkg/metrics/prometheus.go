package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsweep",
			Subsystem: "run",
			Name:      "decisions_total",
			Help:      "Total number of decommission decisions by outcome",
		},
		[]string{"outcome", "resource_type"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "opsweep",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of a decommission run in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Catalog metrics
	catalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsweep",
			Subsystem: "catalog",
			Name:      "requests_total",
			Help:      "Total number of management API requests",
		},
		[]string{"operation", "status"},
	)

	catalogRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opsweep",
			Subsystem: "catalog",
			Name:      "retries_total",
			Help:      "Total number of retried management API requests",
		},
	)

	// Backup metrics
	backupBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opsweep",
			Subsystem: "backup",
			Name:      "bytes_total",
			Help:      "Total bytes written to the backup store",
		},
	)

	pollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opsweep",
			Subsystem: "reconcile",
			Name:      "poll_cycles_total",
			Help:      "Total number of deletion reconciliation poll cycles",
		},
	)
)

// RecordDecision increments the decision counter for an outcome.
func RecordDecision(outcome, resourceType string) {
	decisionsTotal.WithLabelValues(outcome, resourceType).Inc()
}

// ObserveRunDuration records the duration of one run.
func ObserveRunDuration(seconds float64) {
	runDuration.Observe(seconds)
}

// RecordCatalogRequest increments the catalog request counter.
func RecordCatalogRequest(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	catalogRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCatalogRetry increments the retry counter.
func RecordCatalogRetry() {
	catalogRetriesTotal.Inc()
}

// RecordBackupBytes adds to the backup byte counter.
func RecordBackupBytes(n int) {
	backupBytesTotal.Add(float64(n))
}

// RecordPollCycle increments the reconciliation poll counter.
func RecordPollCycle() {
	pollCyclesTotal.Inc()
}

// Handler returns the HTTP handler exposing all registered metrics,
// served only in long-running scheduled mode.
func Handler() http.Handler {
	return promhttp.Handler()
}
