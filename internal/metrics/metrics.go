// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the gateway's Prometheus collectors. One instance is
// shared by the dispatcher and the subscription engine.
type Metrics struct {
	registry *prometheus.Registry

	Requests            *prometheus.CounterVec
	UpdateEvents        prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
}

// New registers the gateway collectors on a fresh registry so tests can run
// isolated instances side by side.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridgate",
			Name:      "requests_total",
			Help:      "Operations dispatched to the core, by protocol, method, and outcome.",
		}, []string{"protocol", "method", "outcome"}),
		UpdateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridgate",
			Name:      "update_events_total",
			Help:      "User update events emitted by subscription producers.",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridgate",
			Name:      "active_subscriptions",
			Help:      "Subscriptions with a live producer goroutine.",
		}),
	}

	registry.MustRegister(m.Requests, m.UpdateEvents, m.ActiveSubscriptions)
	return m
}

// ObserveRequest records one dispatched operation.
func (m *Metrics) ObserveRequest(protocol, method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Requests.WithLabelValues(protocol, method, outcome).Inc()
}

// Handler serves the /metrics endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
