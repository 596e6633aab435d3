// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay holds the relay's Prometheus collectors. A nil *Relay is valid and
// records nothing.
type Relay struct {
	clients      prometheus.Gauge
	rejected     prometheus.Counter
	disconnects  prometheus.Counter
	desyncs      prometheus.Counter
	gamesStarted prometheus.Counter
	instructions *prometheus.CounterVec
	sendDrops    prometheus.Counter
}

// NewRelay registers the relay collectors with reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	f := promauto.With(reg)
	return &Relay{
		clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Number of connected clients.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "rejected_total",
			Help:      "Connections turned away because a game was running or the table was full.",
		}),
		disconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "disconnects_total",
			Help:      "Clients removed after a closed or failed connection.",
		}),
		desyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "desyncs_total",
			Help:      "Clients dropped for sending a malformed instruction.",
		}),
		gamesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "games_started_total",
			Help:      "Games started from the console.",
		}),
		instructions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "instructions_total",
			Help:      "Instructions received, by op.",
		}, []string{"op"}),
		sendDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mongoose",
			Subsystem: "relay",
			Name:      "send_queue_overflows_total",
			Help:      "Clients dropped because their outbound queue filled up.",
		}),
	}
}

func (m *Relay) ClientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *Relay) ClientGone() {
	if m != nil {
		m.clients.Dec()
		m.disconnects.Inc()
	}
}

func (m *Relay) Rejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *Relay) Desync() {
	if m != nil {
		m.desyncs.Inc()
	}
}

func (m *Relay) GameStarted() {
	if m != nil {
		m.gamesStarted.Inc()
	}
}

func (m *Relay) Instruction(op string) {
	if m != nil {
		m.instructions.WithLabelValues(op).Inc()
	}
}

func (m *Relay) SendOverflow() {
	if m != nil {
		m.sendDrops.Inc()
	}
}
