package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpDurationSeconds  *prometheus.HistogramVec
	essaysUploadedTotal  *prometheus.CounterVec
	essaysProcessedTotal *prometheus.CounterVec
	processingSeconds    prometheus.Histogram
	queueMessagesTotal   *prometheus.CounterVec
	metricsCacheTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors shared by the api, trigger and worker.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocab_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vocab_http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		essaysUploadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocab_essays_uploaded_total",
			Help: "Essays accepted for processing.",
		}, []string{"source"})

		essaysProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocab_essays_processed_total",
			Help: "Essay processing attempts by outcome.",
		}, []string{"outcome"})

		processingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vocab_essay_processing_seconds",
			Help:    "Time spent processing a single essay.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		})

		queueMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocab_queue_messages_total",
			Help: "Work queue deliveries by settlement result.",
		}, []string{"result"})

		metricsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocab_metrics_cache_total",
			Help: "Aggregate cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpDurationSeconds,
			essaysUploadedTotal,
			essaysProcessedTotal,
			processingSeconds,
			queueMessagesTotal,
			metricsCacheTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpDurationSeconds
}

// EssaysUploaded counts accepted essays by upload source.
func EssaysUploaded() *prometheus.CounterVec {
	RegisterMetrics()
	return essaysUploadedTotal
}

// EssaysProcessed counts processing attempts by outcome.
func EssaysProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return essaysProcessedTotal
}

// ProcessingDuration exposes the per-essay processing histogram.
func ProcessingDuration() prometheus.Histogram {
	RegisterMetrics()
	return processingSeconds
}

// QueueMessages counts work queue settlements (ack, retry, dead_letter, skipped).
func QueueMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return queueMessagesTotal
}

// MetricsCache counts aggregate cache hits, misses and errors.
func MetricsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return metricsCacheTotal
}
