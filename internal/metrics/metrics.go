// Package metrics exports Prometheus collectors for the HTTP surface and the
// extraction pipeline. All collectors are registered with the default
// registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	UnitsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_units_total",
			Help: "Document units processed, by outcome",
		},
		[]string{"outcome"},
	)

	RecordsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_records_extracted_total",
			Help: "Medication records extracted",
		},
	)

	DegradedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_records_degraded_total",
			Help: "Records produced by the raw-text fallback",
		},
	)

	ExtractionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extraction_retries_total",
			Help: "Extraction calls retried after a transient failure",
		},
	)

	CatalogLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Catalog searches, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "admission_queue_depth",
			Help: "Documents waiting for a worker",
		},
	)

	PendingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_sessions",
			Help: "Sessions holding records awaiting export",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(UnitsProcessed)
	prometheus.MustRegister(RecordsExtracted)
	prometheus.MustRegister(DegradedRecords)
	prometheus.MustRegister(ExtractionRetries)
	prometheus.MustRegister(CatalogLookups)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(PendingSessions)
}
