package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	gradingOutcomesTotal  *prometheus.CounterVec
	bulkImportRowsTotal   *prometheus.CounterVec
	bulkImportDurationSec prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campus_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_grading_outcomes_total",
			Help: "Grading operations by mode (manual, auto) and outcome.",
		}, []string{"mode", "outcome"})

		bulkImportRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_bulk_import_rows_total",
			Help: "Grade sheet rows by import outcome (applied, rejected, failed).",
		}, []string{"outcome"})

		bulkImportDurationSec = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campus_bulk_import_duration_seconds",
			Help:    "Duration of bulk grade imports.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingOutcomesTotal,
			bulkImportRowsTotal,
			bulkImportDurationSec,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradingOutcomes exposes the counter for grading operations.
func GradingOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomesTotal
}

// BulkImportRows exposes the counter for imported grade sheet rows.
func BulkImportRows() *prometheus.CounterVec {
	RegisterMetrics()
	return bulkImportRowsTotal
}

// BulkImportDuration exposes the histogram for bulk import durations.
func BulkImportDuration() prometheus.Histogram {
	RegisterMetrics()
	return bulkImportDurationSec
}
