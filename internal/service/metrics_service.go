package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the lifecycle engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	assignmentFailures prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
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

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_transitions_total",
		Help: "Lifecycle transitions grouped by target status and outcome",
	}, []string{"target", "outcome"})

	assignmentFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "job_assignment_failures_total",
		Help: "Automatic assignments that found no compatible printer",
	})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		transitionsTotal,
		assignmentFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		transitionsTotal:   transitionsTotal,
		assignmentFailures: assignmentFailures,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, code).Inc()
}

// RecordTransition counts a lifecycle transition attempt.
func (s *MetricsService) RecordTransition(target string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.transitionsTotal.WithLabelValues(target, outcome).Inc()
}

// RecordAssignmentFailure counts a NO_COMPATIBLE_PRINTER outcome.
func (s *MetricsService) RecordAssignmentFailure() {
	s.assignmentFailures.Inc()
}
