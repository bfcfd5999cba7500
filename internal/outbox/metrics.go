package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox throughput and queue depth. A nil *Metrics is a no-op.
type Metrics struct {
	Enqueued        *prometheus.CounterVec
	Dispatched      *prometheus.CounterVec
	DispatchLatency *prometheus.HistogramVec
	Dead            *prometheus.CounterVec
	Pending         prometheus.Gauge
	Locked          prometheus.Gauge
	DeadDepth       prometheus.Gauge
	Leader          prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renewals_outbox",
			Name:      "enqueue_total",
			Help:      "Total number of outbox messages enqueued",
		}, []string{"topic"}),
		Dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renewals_outbox",
			Name:      "dispatch_total",
			Help:      "Total number of outbox dispatch attempts",
		}, []string{"topic", "result"}),
		DispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "renewals_outbox",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for outbox dispatch",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"topic", "result"}),
		Dead: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renewals_outbox",
			Name:      "dead_total",
			Help:      "Total number of messages that entered the dead state",
		}, []string{"topic"}),
		Pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "renewals_outbox",
			Name:      "pending",
			Help:      "Current number of undelivered messages",
		}),
		Locked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "renewals_outbox",
			Name:      "locked",
			Help:      "Current number of messages claimed by a relay",
		}),
		DeadDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "renewals_outbox",
			Name:      "dead",
			Help:      "Current number of dead messages awaiting resync",
		}),
		Leader: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "renewals_outbox",
			Name:      "relay_leader",
			Help:      "Whether this instance holds the relay leader lock (1/0)",
		}),
	}
}

func (m *Metrics) incEnqueued(topic Topic) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(string(topic)).Inc()
}

func (m *Metrics) observeDispatch(topic Topic, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Dispatched.WithLabelValues(string(topic), result).Inc()
	m.DispatchLatency.WithLabelValues(string(topic), result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) incDead(topic Topic) {
	if m == nil {
		return
	}
	m.Dead.WithLabelValues(string(topic)).Inc()
}

func (m *Metrics) setDepth(st Stats) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(st.Pending))
	m.Locked.Set(float64(st.Locked))
	m.DeadDepth.Set(float64(st.Dead))
}

func (m *Metrics) setLeader(leader bool) {
	if m == nil {
		return
	}
	if leader {
		m.Leader.Set(1)
		return
	}
	m.Leader.Set(0)
}
