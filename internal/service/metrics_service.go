package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	embeddingDuration prometheus.Observer
	embeddingFailures prometheus.Counter
	searchTotal       *prometheus.CounterVec
	searchDegraded    *prometheus.CounterVec
	votesTotal        *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	embeddingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "embedding_request_duration_seconds",
		Help:    "Latency of embedding provider calls",
		Buckets: prometheus.DefBuckets,
	})

	embeddingFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embedding_failures_total",
		Help: "Total failed embedding provider calls",
	})

	searchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Total similarity search requests",
	}, []string{"surface"})

	searchDegraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_degraded_total",
		Help: "Search requests that returned empty results due to rate limiting or provider failure",
	}, []string{"surface"})

	votesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "votes_total",
		Help: "Total vote operations",
	}, []string{"action"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, embeddingDuration, embeddingFailures, searchTotal, searchDegraded, votesTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		embeddingDuration: embeddingDuration,
		embeddingFailures: embeddingFailures,
		searchTotal:       searchTotal,
		searchDegraded:    searchDegraded,
		votesTotal:        votesTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveEmbedding records an embedding provider call.
func (m *MetricsService) ObserveEmbedding(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.embeddingDuration.Observe(duration.Seconds())
	if err != nil {
		m.embeddingFailures.Inc()
	}
}

// RecordSearch counts a search request on the given surface.
func (m *MetricsService) RecordSearch(surface string, degraded bool) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(surface).Inc()
	if degraded {
		m.searchDegraded.WithLabelValues(surface).Inc()
	}
}

// RecordVote counts a vote action ("cast" or "retract").
func (m *MetricsService) RecordVote(action string) {
	if m == nil {
		return
	}
	m.votesTotal.WithLabelValues(action).Inc()
}
