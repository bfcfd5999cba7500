package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe; a nil *Metrics records nothing.
type Metrics struct {
	latency      *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renewals_upstream_call_duration_seconds",
			Help:    "Latency of calls to dependent services by service, operation and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service", "operation", "outcome"}),
		breakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "renewals_upstream_breaker_open",
			Help: "1 while the circuit breaker for a dependent service is open",
		}, []string{"service"}),
	}
}

func (m *Metrics) observe(service, operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(service, operation, outcome).Observe(seconds)
}

func (m *Metrics) setBreakerOpen(service string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerState.WithLabelValues(service).Set(v)
}
