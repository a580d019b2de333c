package transmit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for transmit loops.
// A nil *Metrics records nothing.
type Metrics struct {
	framesWritten *prometheus.CounterVec
	writeErrors   *prometheus.CounterVec
	activeLoops   *prometheus.GaugeVec
}

// NewMetrics registers the transmit collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ptz",
			Subsystem: "transmit",
			Name:      "frames_written_total",
			Help:      "Total number of frames written to the link",
		}, []string{"protocol"}),

		writeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ptz",
			Subsystem: "transmit",
			Name:      "write_errors_total",
			Help:      "Total number of failed frame writes",
		}, []string{"protocol"}),

		activeLoops: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ptz",
			Subsystem: "transmit",
			Name:      "active_loops",
			Help:      "Number of running repeat loops",
		}, []string{"protocol"}),
	}
}

func (m *Metrics) frameWritten(label string) {
	if m == nil {
		return
	}
	m.framesWritten.WithLabelValues(label).Inc()
}

func (m *Metrics) writeFailed(label string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(label).Inc()
}

func (m *Metrics) loopStarted(label string) {
	if m == nil {
		return
	}
	m.activeLoops.WithLabelValues(label).Inc()
}

func (m *Metrics) loopStopped(label string) {
	if m == nil {
		return
	}
	m.activeLoops.WithLabelValues(label).Dec()
}
