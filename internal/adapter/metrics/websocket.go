package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for relay connections and fan-out.
type RelayMetrics struct {
	ActiveConnections  prometheus.Gauge
	RoomMemberships    *prometheus.GaugeVec
	MessagesPublished  *prometheus.CounterVec
	MessagesDelivered  prometheus.Counter
	SlowClientsEvicted prometheus.Counter
	InvalidMessages    *prometheus.CounterVec
	RejectedClients    prometheus.Counter
	BridgeMessages     *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		RoomMemberships: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "room_members",
			Help:      "Number of connections joined to each room.",
		}, []string{"room"}),
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_published_total",
			Help:      "Total number of messages published into a room, by origin.",
		}, []string{"origin"}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_delivered_total",
			Help:      "Total number of messages queued to peer connections.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of connections dropped because their send buffer was full.",
		}),
		InvalidMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "invalid_messages_total",
			Help:      "Total number of inbound frames rejected, by reason.",
		}, []string{"reason"}),
		RejectedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "Total number of connections rejected at the connection cap.",
		}),
		BridgeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "messages_total",
			Help:      "Total number of cross-instance bridge messages, by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.RoomMemberships,
		m.MessagesPublished,
		m.MessagesDelivered,
		m.SlowClientsEvicted,
		m.InvalidMessages,
		m.RejectedClients,
		m.BridgeMessages,
	)
	return m
}
