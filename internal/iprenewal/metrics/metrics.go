package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for IP renewals.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	SyncOutcome *prometheus.CounterVec
	Open        prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_ip_operations_total",
			Help: "IP renewal operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renewals_ip_operation_duration_seconds",
			Help:    "Duration of IP renewal operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		SyncOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_ip_sync_total",
			Help: "Directory synchronization outcomes for completed IP renewals",
		}, []string{"status"}),
		Open: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "renewals_ip_open_requests",
			Help: "IP renewals created and not yet executed by this instance",
		}),
	}
}

func (m *Metrics) Observe(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSync(status string) {
	if m == nil {
		return
	}
	m.SyncOutcome.WithLabelValues(status).Inc()
}

func (m *Metrics) IncOpen() {
	if m == nil {
		return
	}
	m.Open.Inc()
}

func (m *Metrics) DecOpen() {
	if m == nil {
		return
	}
	m.Open.Dec()
}
