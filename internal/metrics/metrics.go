// Package metrics exposes chainpilot's Prometheus collectors.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/monagent/chainpilot/internal/tx"
)

// Metrics holds all Prometheus collectors for the application. It is passed
// to the components that record into it.
type Metrics struct {
	// Agent metrics
	agentRequestsTotal   *prometheus.CounterVec
	agentRequestDuration *prometheus.HistogramVec

	// Transfer metrics
	transfersTotal         *prometheus.CounterVec
	transferFallbacksTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		agentRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Total number of agent API calls by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		agentRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_request_duration_seconds",
				Help:    "Duration of agent API calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"endpoint"},
		),

		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of transfer lifecycles by terminal state",
			},
			[]string{"chain", "state", "error_kind"},
		),
		transferFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_fallbacks_total",
				Help: "Total number of transfers submitted through the provider fallback",
			},
			[]string{"chain"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10.0, 30.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
	}
}

// ObserveAgentRequest records an agent API call.
func (m *Metrics) ObserveAgentRequest(endpoint, status string, d time.Duration) {
	m.agentRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.agentRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordOutcome counts a finished transfer lifecycle.
func (m *Metrics) RecordOutcome(_ context.Context, r tx.Result) {
	chainName := r.Pending.Chain
	if chainName == "" {
		chainName = "unknown"
	}
	kind := ""
	if r.Err != nil {
		kind = string(tx.KindOf(r.Err))
	}
	m.transfersTotal.WithLabelValues(chainName, r.State.String(), kind).Inc()
	if r.Outcome != nil && r.Outcome.Fallback {
		m.transferFallbacksTotal.WithLabelValues(chainName).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

func statusCodeToString(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return strconv.Itoa(code)
	}
}
