package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transfer workflow.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	SyncOutcome *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_transfer_operations_total",
			Help: "Transfer operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renewals_transfer_operation_duration_seconds",
			Help:    "Duration of transfer operations, including upstream lookups",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		SyncOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_transfer_sync_total",
			Help: "Directory synchronization outcomes for approved transfers",
		}, []string{"status"}),
	}
}

// Observe records one operation. A nil receiver is a no-op.
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
