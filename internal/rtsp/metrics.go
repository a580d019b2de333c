package rtsp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts relayed video packets. A nil *Metrics records nothing.
type Metrics struct {
	packets    prometheus.Counter
	dropped    prometheus.Counter
	reconnects prometheus.Counter
	connected  prometheus.Gauge
}

// NewMetrics registers the relay collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: "ptz", Subsystem: "video", Name: name, Help: help}
	}

	return &Metrics{
		packets:    factory.NewCounter(opts("rtp_packets_total", "RTP packets received from the camera")),
		dropped:    factory.NewCounter(opts("rtp_dropped_total", "RTP packets dropped because the relay was behind")),
		reconnects: factory.NewCounter(opts("reconnects_total", "Successful RTSP reconnections")),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ptz",
			Subsystem: "video",
			Name:      "connected",
			Help:      "1 while the RTSP stream is playing",
		}),
	}
}

func (m *Metrics) packet(dropped bool) {
	if m == nil {
		return
	}
	m.packets.Inc()
	if dropped {
		m.dropped.Inc()
	}
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}
