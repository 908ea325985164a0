// Package metrics provides Prometheus instrumentation for the billing
// control plane.
//
// All metrics are registered in a custom [prometheus.Registry] (not the
// global default) so that only this service's metrics appear on the /metrics
// endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors used by the server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EvaluationsTotal     *prometheus.CounterVec
	EvaluationConfidence prometheus.Histogram
	PoliciesTriggered    prometheus.Histogram
	UnsafePolicyRejects  prometheus.Counter
	ActionDispatchErrors prometheus.Counter
	AuthFailuresTotal    prometheus.Counter
}

// New creates and registers all collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_policy_evaluations_total",
			Help: "Total number of policy evaluation calls by final decision.",
		}, []string{"decision"}),

		EvaluationConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_evaluation_confidence",
			Help:    "Fraction of loaded policies that triggered per evaluation.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),

		PoliciesTriggered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_policies_triggered",
			Help:    "Number of triggered policies per evaluation.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),

		UnsafePolicyRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_unsafe_policy_rejections_total",
			Help: "Total evaluation calls rejected because a policy carried a raw string expression.",
		}),

		ActionDispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_action_dispatch_errors_total",
			Help: "Total side-effect writes that failed during action dispatch.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EvaluationsTotal,
		m.EvaluationConfidence,
		m.PoliciesTriggered,
		m.UnsafePolicyRejects,
		m.ActionDispatchErrors,
		m.AuthFailuresTotal,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts and latency per method/route/status.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.status)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
