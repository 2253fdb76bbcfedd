package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics count spills to disk.
type Metrics struct {
	Spills          prometheus.Counter
	SpilledBytes    prometheus.Counter
	CleanupFailures prometheus.Counter
}

// NewMetrics creates a new metrics instance, the instance shall be
// assigned to DefaultMetrics before any processing takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Spills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "spills_total",
			Help:      "Stores which crossed their threshold and moved to disk.",
		}),
		SpilledBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "spilled_bytes_total",
			Help:      "Bytes moved from memory to disk when spilling.",
		}),
		CleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_failures_total",
			Help:      "Spill files which couldn't be removed straight away.",
		}),
	}
}

// DefaultMetrics specifies metrics used by the stores.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Spills,
		m.SpilledBytes,
		m.CleanupFailures,
	}
}

func (m *Metrics) onSpill(n int64) {
	if m == nil {
		return
	}
	m.Spills.Inc()
	m.SpilledBytes.Add(float64(n))
}

func (m *Metrics) onCleanupFailure() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}
