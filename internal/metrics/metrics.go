package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gartenconnect_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_inbound_events_total",
			Help: "Inbound chat events by outcome",
		},
		[]string{"outcome"}, // replied, gated, duplicate, throttled, failed
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_stage_failures_total",
			Help: "Pipeline failures by stage",
		},
		[]string{"stage"},
	)

	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_backend_requests_total",
			Help: "Classifier requests by result",
		},
		[]string{"result"}, // ok, http_error, unreachable
	)

	BackendLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gartenconnect_backend_latency_seconds",
			Help:    "Classifier round trip latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	RenderUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_render_units_total",
			Help: "Outbound units sent by kind",
		},
		[]string{"kind"},
	)

	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gartenconnect_send_failures_total",
			Help: "Outbound units the transport failed to send",
		},
	)

	ImageFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gartenconnect_image_fetch_failures_total",
			Help: "Product images that could not be fetched",
		},
	)

	MalformedProducts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gartenconnect_malformed_products_total",
			Help: "Products in a classifier answer that could not be decoded",
		},
	)

	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gartenconnect_media_uploads_total",
			Help: "Inbound media uploads by result",
		},
		[]string{"result"},
	)
)
