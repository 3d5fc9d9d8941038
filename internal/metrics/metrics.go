// Package metrics defines the Prometheus instrumentation for recvault.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	// Reconciler metrics
	ReconcilePasses      prometheus.Counter
	ReconcileErrors      prometheus.Counter
	ReconcileDuration    prometheus.Histogram
	CandidatesSeen       prometheus.Counter
	ChunksRegistered     prometheus.Counter
	RecordingsRegistered prometheus.Counter

	// Deletion metrics
	ChunksDeleted prometheus.Counter
	ArchiveErrors prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	BytesStreamed       prometheus.Counter
}

// NewMetrics creates and registers all metrics on the given registerer.
// Tests pass their own prometheus.NewRegistry() to avoid collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReconcilePasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_reconcile_passes_total",
			Help: "Total number of reconciliation passes run",
		}),
		ReconcileErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_reconcile_errors_total",
			Help: "Total number of reconciliation passes that failed",
		}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recvault_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		CandidatesSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_scan_candidates_total",
			Help: "Total number of candidate files reported by the scanner",
		}),
		ChunksRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_chunks_registered_total",
			Help: "Total number of new chunk rows created by reconciliation",
		}),
		RecordingsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_recordings_registered_total",
			Help: "Total number of new legacy recording rows created by reconciliation",
		}),
		ChunksDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_chunks_deleted_total",
			Help: "Total number of chunks soft-deleted",
		}),
		ArchiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_archive_errors_total",
			Help: "Total number of failed archive uploads during deletion",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recvault_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recvault_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}, []string{"method", "endpoint"}),
		BytesStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "recvault_audio_bytes_streamed_total",
			Help: "Total audio bytes written to clients",
		}),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
