package sniff

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics count what the detect and decode loop does.
type Metrics struct {
	Detections     *prometheus.CounterVec
	Decodes        *prometheus.CounterVec
	DetectorErrors *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance, the instance shall be
// assigned to DefaultMetrics before any processing takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sniff",
			Name:      "detections_total",
			Help:      "Formats detected by tag.",
		}, []string{"format", "level"}),
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sniff",
			Name:      "decodes_total",
			Help:      "Decoders pushed by tag.",
		}, []string{"format"}),
		DetectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sniff",
			Name:      "detector_errors_total",
			Help:      "Detector failures by detector name.",
		}, []string{"detector"}),
	}
}

// DefaultMetrics specifies metrics used by the orchestrator.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Detections,
		m.Decodes,
		m.DetectorErrors,
	}
}

// OnDetect records a detection at level
func (m *Metrics) OnDetect(id FormatID, level int) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(string(id.tag()), levelLabel(level)).Inc()
}

// OnDecode records a decoder being pushed
func (m *Metrics) OnDecode(tag Tag) {
	if m == nil {
		return
	}
	m.Decodes.WithLabelValues(string(tag)).Inc()
}

// OnDetectorError records a detector failure
func (m *Metrics) OnDetectorError(name string) {
	if m == nil {
		return
	}
	m.DetectorErrors.WithLabelValues(name).Inc()
}

var levelLabels = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

func levelLabel(level int) string {
	if level >= 0 && level < len(levelLabels) {
		return levelLabels[level]
	}
	return "deep"
}
