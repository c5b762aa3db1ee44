// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	FieldOutcomes *prometheus.CounterVec
	AuthFailures  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rank_math_api_requests_total",
			Help: "HTTP requests by route class, method and status code.",
		}, []string{"route_class", "method", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rank_math_api_request_duration_seconds",
			Help:    "HTTP request latency by route class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route_class"}),
		FieldOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rank_math_api_field_outcomes_total",
			Help: "Per-field update outcomes.",
		}, []string{"field", "outcome"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rank_math_api_auth_failures_total",
			Help: "Rejected credentials by scheme.",
		}, []string{"scheme"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveRequest(routeClass, method string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(routeClass, method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(routeClass).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveField(field, outcome string) {
	m.FieldOutcomes.WithLabelValues(field, outcome).Inc()
}

func (m *Metrics) ObserveAuthFailure(scheme string) {
	m.AuthFailures.WithLabelValues(scheme).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
