package observability

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusMetrics implements Metrics on a private Prometheus registry.
// Metric names are prefixed with the service name.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	operationsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a metrics collector with pre-registered
// metric families:
//
//	{service}_operations_total{operation, status}
//	{service}_errors_total{operation, error_type}
//	{service}_duration_seconds{operation}
func NewPrometheusMetrics(service string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_operations_total", service),
			Help: "Total completed operations by status.",
		},
		[]string{"operation", "status"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_errors_total", service),
			Help: "Total errors by operation and error type.",
		},
		[]string{"operation", "error_type"},
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_duration_seconds", service),
			Help:    "Operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.registry.MustRegister(m.operationsTotal, m.errorsTotal, m.durationSeconds)
	return m
}

func (m *PrometheusMetrics) RecordSuccess(operation string) {
	m.operationsTotal.WithLabelValues(operation, "success").Inc()
}

func (m *PrometheusMetrics) RecordError(operation string, errorType string) {
	m.operationsTotal.WithLabelValues(operation, "error").Inc()
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

func (m *PrometheusMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// Gather exposes the private registry, mainly for tests and for dumping a
// summary at the end of a run.
func (m *PrometheusMetrics) Gather() prometheus.Gatherer {
	return m.registry
}

// Dump writes all collected metrics to w in the Prometheus text format,
// for an end-of-run summary.
func (m *PrometheusMetrics) Dump(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordSuccess(string)           {}
func (NopMetrics) RecordError(string, string)     {}
func (NopMetrics) RecordDuration(string, float64) {}
