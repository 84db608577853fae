package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	panelRequestsTotal    *prometheus.CounterVec
	panelLatencySeconds   *prometheus.HistogramVec
	panelErrorsTotal      *prometheus.CounterVec
	schemaProbesTotal     *prometheus.CounterVec
	archiveRejectedTotal  *prometheus.CounterVec
	archiveLatencySeconds prometheus.Histogram
	manualChecksTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the teacher panel.
func RegisterMetrics() {
	registerOnce.Do(func() {
		panelRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_requests_total",
			Help: "Total number of teacher panel requests served.",
		}, []string{"method", "route", "status"})

		panelLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panel_latency_seconds",
			Help:    "Latency distribution for teacher panel requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		panelErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_errors_total",
			Help: "Total number of error responses returned by teacher panel endpoints.",
		}, []string{"method", "route", "status"})

		schemaProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_schema_probes_total",
			Help: "Schema capability probes by kind and outcome.",
		}, []string{"kind", "outcome"})

		archiveRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_archive_rejected_total",
			Help: "Hidden test archives rejected during validation.",
		}, []string{"reason"})

		archiveLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "panel_archive_upload_seconds",
			Help:    "Time spent validating and storing hidden test archives.",
			Buckets: prometheus.DefBuckets,
		})

		manualChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_manual_checks_total",
			Help: "Manual checks recorded by target.",
		}, []string{"target"})

		prometheus.MustRegister(
			panelRequestsTotal,
			panelLatencySeconds,
			panelErrorsTotal,
			schemaProbesTotal,
			archiveRejectedTotal,
			archiveLatencySeconds,
			manualChecksTotal,
		)
	})
}

// PanelRequests exposes the counter for panel requests.
func PanelRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return panelRequestsTotal
}

// PanelLatency exposes the latency histogram for panel requests.
func PanelLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return panelLatencySeconds
}

// PanelErrors exposes the counter for panel error responses.
func PanelErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return panelErrorsTotal
}

// SchemaProbes counts capability probes labelled by kind (table, column) and
// outcome (present, absent, error).
func SchemaProbes() *prometheus.CounterVec {
	RegisterMetrics()
	return schemaProbesTotal
}

// ArchiveRejected counts rejected archive uploads by reason.
func ArchiveRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return archiveRejectedTotal
}

// ArchiveLatency observes archive upload durations.
func ArchiveLatency() prometheus.Histogram {
	RegisterMetrics()
	return archiveLatencySeconds
}

// ManualChecks counts manual checks by target (submission, test).
func ManualChecks() *prometheus.CounterVec {
	RegisterMetrics()
	return manualChecksTotal
}
