package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Decode metrics
	decodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_decode_requests_total",
			Help: "Total number of decode requests",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	codesPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_codes_per_image",
			Help:    "Number of codes decoded from one image",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
		[]string{"source"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_provider_duration_seconds",
			Help:    "Recognition provider call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// Catalog metrics
	catalogLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_catalog_lookups_total",
			Help: "Total number of catalog lookups",
		},
		[]string{"outcome"}, // outcome: barcode, sku, not_found, error
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barscan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
