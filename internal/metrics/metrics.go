// Package metrics holds the Prometheus instrumentation of the SMP
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Each
// instance carries its own registry so tests can construct independent
// sets without collisions.
type Metrics struct {
	registry *prometheus.Registry

	// Operations counts API operations by name and outcome
	Operations *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smp_operations_total",
			Help: "Total number of SMP operations by operation name and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// Success increments the success counter for an operation
func (m *Metrics) Success(operation string) {
	m.Operations.WithLabelValues(operation, "success").Inc()
}

// Error increments the error counter for an operation
func (m *Metrics) Error(operation string) {
	m.Operations.WithLabelValues(operation, "error").Inc()
}

// Handler serves this metric set in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
