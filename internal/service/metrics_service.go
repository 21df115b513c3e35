package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robofleet/change-request-bot/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the webhook
// surface and the approval lifecycle. A nil *MetricsService is a valid
// no-op so tests can skip instrumentation entirely.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submittedTotal       prometheus.Counter
	decisionsTotal       *prometheus.CounterVec
	finalizationsTotal   *prometheus.CounterVec
	collaboratorFailures *prometheus.CounterVec
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

	submittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "change_requests_submitted_total",
		Help: "Total change requests accepted from the intake form",
	})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_decisions_total",
		Help: "Total recorded approver decisions",
	}, []string{"decision"})

	finalizationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "request_finalizations_total",
		Help: "Total finalized requests by outcome",
	}, []string{"outcome"})

	collaboratorFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collaborator_call_failures_total",
		Help: "Total failed calls to external collaborators",
	}, []string{"collaborator"})

	registry.MustRegister(requestDuration, requestTotal, submittedTotal,
		decisionsTotal, finalizationsTotal, collaboratorFailures)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		submittedTotal:       submittedTotal,
		decisionsTotal:       decisionsTotal,
		finalizationsTotal:   finalizationsTotal,
		collaboratorFailures: collaboratorFailures,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// ObserveHTTPRequest records one webhook delivery.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// IncSubmitted counts an accepted submission.
func (m *MetricsService) IncSubmitted() {
	if m == nil {
		return
	}
	m.submittedTotal.Inc()
}

// IncDecision counts a recorded decision, including auto-marks.
func (m *MetricsService) IncDecision(decision models.Decision) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(decision)).Inc()
}

// IncFinalization counts a committed terminal transition.
func (m *MetricsService) IncFinalization(outcome models.Outcome) {
	if m == nil {
		return
	}
	m.finalizationsTotal.WithLabelValues(string(outcome)).Inc()
}

// IncCollaboratorFailure counts a failed best-effort collaborator call.
func (m *MetricsService) IncCollaboratorFailure(collaborator string) {
	if m == nil {
		return
	}
	m.collaboratorFailures.WithLabelValues(collaborator).Inc()
}
