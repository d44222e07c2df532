package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dermascan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dermascan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scan processing metrics
	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dermascan_scan_requests_total",
			Help: "Total number of scan and crop requests",
		},
		[]string{"type", "status"}, // type: scan, crop, batch, websocket
	)

	scanProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dermascan_scan_processing_duration_seconds",
			Help:    "Scan processing duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dermascan_classifications_total",
			Help: "Classifications by label",
		},
		[]string{"label", "positive"},
	)

	classificationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dermascan_classification_confidence",
			Help:    "Confidence of reported labels",
			Buckets: []float64{.5, .6, .7, .8, .9, .95, .99, 1},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dermascan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, requests, data
	)

	rateLimitClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dermascan_rate_limit_tracked_clients",
			Help: "Number of clients the rate limiter holds state for",
		},
	)

	artifactsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dermascan_artifacts_pruned_total",
			Help: "Total number of expired crop artifacts removed",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dermascan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 20 * 1024 * 1024, 64 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dermascan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dermascan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
