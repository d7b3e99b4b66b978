// Package metrics holds the Prometheus instruments for the service. All
// record helpers are nil-safe so components can run without metrics wired,
// typically in unit tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	StepWrites           *prometheus.CounterVec
	ActivationsCompleted prometheus.Counter
	BatchFallbacks       prometheus.Counter
	BatchDuration        prometheus.Histogram
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
	DocumentUploads      *prometheus.CounterVec
	DocumentUploadBytes  prometheus.Histogram
	DocumentReadTimeouts prometheus.Counter
	HTTPDuration         *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		StepWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_activation_step_writes_total",
			Help: "Accepted activation step writes by step number",
		}, []string{"step"}),
		ActivationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_activations_completed_total",
			Help: "Activation profiles that reached completed status",
		}),
		BatchFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_batch_fallbacks_total",
			Help: "Batch profile reads that returned the degraded fallback",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lendgate_batch_duration_seconds",
			Help:    "Latency of batch profile aggregation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_cache_hits_total",
			Help: "Batch aggregate cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_cache_misses_total",
			Help: "Batch aggregate cache misses",
		}),
		DocumentUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_document_uploads_total",
			Help: "Accepted document uploads by document type",
		}, []string{"type"}),
		DocumentUploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lendgate_document_upload_bytes",
			Help:    "Size distribution of accepted document uploads",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		DocumentReadTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_document_read_timeouts_total",
			Help: "Document content reads abandoned at the deadline",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) RecordStepWrite(step string) {
	if m == nil {
		return
	}
	m.StepWrites.WithLabelValues(step).Inc()
}

func (m *Metrics) RecordActivationCompleted() {
	if m == nil {
		return
	}
	m.ActivationsCompleted.Inc()
}

func (m *Metrics) RecordBatchFallback() {
	if m == nil {
		return
	}
	m.BatchFallbacks.Inc()
}

func (m *Metrics) ObserveBatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) RecordDocumentUpload(docType string, size int64) {
	if m == nil {
		return
	}
	m.DocumentUploads.WithLabelValues(docType).Inc()
	m.DocumentUploadBytes.Observe(float64(size))
}

func (m *Metrics) RecordDocumentReadTimeout() {
	if m == nil {
		return
	}
	m.DocumentReadTimeouts.Inc()
}

func (m *Metrics) ObserveHTTPDuration(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
