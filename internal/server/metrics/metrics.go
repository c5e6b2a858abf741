// Package metrics defines the Prometheus instruments of the identity server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TokensIssuedTotal      prometheus.Counter
	ExchangesRejectedTotal *prometheus.CounterVec
	GateDecisionsTotal     *prometheus.CounterVec
	IdentityMutationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the instruments and registers them on registry. A nil registry
// gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "khazana_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "khazana_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "khazana_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
		),
		ExchangesRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "khazana_credential_exchanges_rejected_total",
				Help: "Credential exchanges rejected, by reason",
			},
			[]string{"reason"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "khazana_gate_decisions_total",
				Help: "Authorization gate decisions, by admission state and reason",
			},
			[]string{"admission", "reason"},
		),
		IdentityMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "khazana_identity_mutations_total",
				Help: "Identity mutations, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokensIssuedTotal,
		m.ExchangesRejectedTotal,
		m.GateDecisionsTotal,
		m.IdentityMutationsTotal,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
