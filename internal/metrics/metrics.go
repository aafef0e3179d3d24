// Package metrics provides the prometheus collectors for the labeling app.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	storeOpsTotal      *prometheus.CounterVec
	storeOpDuration    *prometheus.HistogramVec
	labelsSubmitted    *prometheus.CounterVec
	loginsTotal        *prometheus.CounterVec
	registrationsTotal *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlabel_store_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"backend", "operation", "status"}, // status: success, error
	)
	m.storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "marketlabel_store_operation_duration_seconds",
			Help: "Time taken by record store operations",
			// Drive round trips dominate: 10ms to ~20s.
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"backend", "operation"},
	)
	m.labelsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlabel_labels_submitted_total",
			Help: "Total number of labels submitted",
		},
		[]string{"binary_flag"},
	)
	m.loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlabel_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)
	m.registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlabel_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	for _, c := range []prometheus.Collector{
		m.storeOpsTotal, m.storeOpDuration, m.labelsSubmitted, m.loginsTotal, m.registrationsTotal,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStoreOp(backend, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.storeOpsTotal.WithLabelValues(backend, op, status).Inc()
	m.storeOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

func (m *Metrics) LabelSubmitted(flag string) {
	if m == nil {
		return
	}
	m.labelsSubmitted.WithLabelValues(flag).Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(result).Inc()
}
