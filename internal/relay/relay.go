package relay

import (
	"log/slog"
)

func (h *Hub) handlePublish(c publishCmd) {
	origin := "server"
	switch {
	case c.from != "":
		origin = "client"
	case !c.forward:
		origin = "bridge"
	}
	if h.metrics != nil {
		h.metrics.MessagesPublished.WithLabelValues(origin).Inc()
	}

	var slow []ConnectionID
	delivered := 0
	for id := range h.rooms[c.room] {
		if id == c.from {
			continue
		}
		conn := h.connections[id]
		select {
		case conn.writer.sendChannel <- c.data:
			delivered++
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow client", "connection_id", string(id), "room", c.room)
		if h.metrics != nil {
			h.metrics.SlowClientsEvicted.Inc()
		}
		h.handleDisconnect(id)
	}

	if h.metrics != nil {
		h.metrics.MessagesDelivered.Add(float64(delivered))
	}

	if c.forward && h.bridge != nil {
		h.bridge.Forward(c.room, c.data)
	}

	slog.Debug("Message relayed", "room", c.room, "origin", origin, "delivered", delivered)
}
