package operations

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts executed operations per domain.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the operation collectors on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rhoai_operations_total",
			Help: "Operations executed against the resource API, by outcome.",
		}, []string{"domain", "operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rhoai_operation_duration_seconds",
			Help:    "Wall-clock duration of executed operations.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"domain"}),
	}
}

func (m *Metrics) observe(domain, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(domain, operation, status).Inc()
	m.duration.WithLabelValues(domain).Observe(d.Seconds())
}
