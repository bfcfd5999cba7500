package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Sent   *prometheus.CounterVec
	Failed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_notifications_sent_total",
			Help: "Notifications delivered by event type",
		}, []string{"event_type"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renewals_notifications_failed_total",
			Help: "Notifications that could not be delivered by event type",
		}, []string{"event_type"}),
	}
}

func (m *Metrics) incSent(eventType string) {
	if m == nil {
		return
	}
	m.Sent.WithLabelValues(eventType).Inc()
}

func (m *Metrics) incFailed(eventType string) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(eventType).Inc()
}
