// Package metrics exposes Prometheus instrumentation for lifecycle
// transitions and fund releases.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	FundsReleased      prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proposal_transitions_total",
			Help: "Successful lifecycle transitions by name.",
		}, []string{"transition"}),
		TransitionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proposal_transition_failures_total",
			Help: "Rejected lifecycle transitions by name and error code.",
		}, []string{"transition", "code"}),
		FundsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proposal_funds_released_total",
			Help: "Total amount released through installments.",
		}),
	}

	reg.MustRegister(m.Transitions, m.TransitionFailures, m.FundsReleased)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
