// Package metrics provides Prometheus instrumentation for the mandi engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecommendationsTotal counts recommendation requests served,
	// partitioned by optimization goal.
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_recommendations_total",
		Help: "Total recommendation requests served",
	}, []string{"goal"})

	// RecommendationLatency tracks end-to-end engine latency.
	RecommendationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_recommendation_latency_seconds",
		Help:    "Recommendation engine latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"goal"})

	// QuoteLookupsTotal counts per-mandi price lookups by outcome
	// (ok, failed, timeout, no_data).
	QuoteLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_quote_lookups_total",
		Help: "Per-mandi price lookups by outcome",
	}, []string{"outcome"})

	// CandidatesExcluded counts candidates dropped from ranking by reason.
	CandidatesExcluded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_candidates_excluded_total",
		Help: "Candidates excluded from ranking by reason",
	}, []string{"reason"})

	// SnapshotRuns counts price snapshot ingest runs by result.
	SnapshotRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_snapshot_runs_total",
		Help: "Price snapshot ingest runs",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mandi_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small
		// enough that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
