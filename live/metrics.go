package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the coordinator's operational counters.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	TelemetrySources  prometheus.Gauge
	TicksRelayed      *prometheus.CounterVec
	BroadcastsTotal   prometheus.Counter
	AuthFailures      prometheus.Counter
	Reclaims          prometheus.Counter
	DroppedMessages   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "live_connections_active",
			Help: "Number of currently registered websocket connections.",
		}),
		TelemetrySources: factory.NewGauge(prometheus.GaugeOpts{
			Name: "live_telemetry_sources",
			Help: "Number of authenticated telemetry-source connections.",
		}),
		TicksRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "live_ticks_relayed_total",
			Help: "Telemetry ticks relayed to viewer rooms, by session kind.",
		}, []string{"kind"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "live_broadcasts_total",
			Help: "Messages broadcast to rooms.",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "live_auth_failures_total",
			Help: "Telemetry-source authentications rejected for a bad secret.",
		}),
		Reclaims: factory.NewCounter(prometheus.CounterOpts{
			Name: "live_session_reclaims_total",
			Help: "Sessions rebound to a reconnecting telemetry source.",
		}),
		DroppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "live_dropped_messages_total",
			Help: "Inbound messages dropped as malformed or referencing unknown state.",
		}),
	}
}
