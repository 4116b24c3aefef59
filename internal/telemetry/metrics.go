package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Firing-channel metrics.
var (
	FiringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belfry_firings_total",
		Help: "Handler firings by kind (work, break, resync).",
	}, []string{"kind"})

	HandlerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belfry_handler_failures_total",
		Help: "Handler errors and panics by channel.",
	}, []string{"channel"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "belfry_handler_duration_seconds",
		Help:    "Handler execution time by kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ClockDriftSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "belfry_clock_drift_seconds",
		Help: "Drift between the virtual clock and the time source at the last sync.",
	})
)

// Schedule keeper metrics.
var (
	ScheduleSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belfry_schedule_syncs_total",
		Help: "Timetable sync attempts by result (ok, fallback, error).",
	}, []string{"result"})

	InvalidTimestampsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "belfry_invalid_timestamps_total",
		Help: "Malformed timetable entries dropped by the normalizer.",
	})
)

// HTTP API metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "belfry_api_requests_total",
		Help: "HTTP requests by method, endpoint, and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "belfry_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint, and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "belfry_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
