package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics count bridge tasks.
type Metrics struct {
	Tasks  *prometheus.CounterVec
	Active prometheus.Gauge
}

// NewMetrics creates a new metrics instance, the instance shall be
// assigned to DefaultMetrics before any processing takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "tasks_total",
			Help:      "Finished producers by outcome.",
		}, []string{"outcome"}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "active_producers",
			Help:      "Producers running now.",
		}),
	}
}

// DefaultMetrics specifies metrics used by new bridges.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Tasks,
		m.Active,
	}
}

func (m *Metrics) onStart() {
	if m == nil {
		return
	}
	m.Active.Inc()
}

func (m *Metrics) onFinish(err error) {
	if m == nil {
		return
	}
	m.Active.Dec()
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	m.Tasks.WithLabelValues(outcome).Inc()
}
