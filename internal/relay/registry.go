package relay

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gorilla/websocket"
)

func (h *Hub) handleConnect(conn *websocket.Conn) (ConnectionID, error) {
	if len(h.connections) >= h.maxConnections {
		slog.Warn("Rejecting client: max connections reached", "max_connections", h.maxConnections)
		if h.metrics != nil {
			h.metrics.RejectedClients.Inc()
		}
		_ = conn.Close()
		return "", fmt.Errorf("max connections (%d) reached", h.maxConnections)
	}

	id := newConnectionID()
	h.connections[id] = &connection{
		writer: newClientWriter(conn, h.clock),
		rooms:  make(map[string]struct{}),
	}

	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Info("Client connected", "connection_id", string(id), "remote_addr", conn.RemoteAddr().String(), "total_clients", len(h.connections))
	return id, nil
}

func (h *Hub) handleJoin(id ConnectionID, room string) {
	c, exists := h.connections[id]
	if !exists {
		return
	}
	if _, joined := c.rooms[room]; joined {
		return
	}

	c.rooms[room] = struct{}{}
	members, exists := h.rooms[room]
	if !exists {
		members = make(map[ConnectionID]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}

	if h.metrics != nil {
		h.metrics.RoomMemberships.WithLabelValues(room).Set(float64(len(members)))
	}
	slog.Info("Client joined room", "connection_id", string(id), "room", room, "members", len(members))
}

func (h *Hub) handleDisconnect(id ConnectionID) {
	c, exists := h.connections[id]
	if !exists {
		return
	}

	c.writer.stop()
	h.forget(id, c)
	slog.Info("Client disconnected", "connection_id", string(id), "remaining_clients", len(h.connections))
}

// forget removes the connection from every table without touching the socket.
func (h *Hub) forget(id ConnectionID, c *connection) {
	for room := range c.rooms {
		members := h.rooms[room]
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
		if h.metrics != nil {
			h.metrics.RoomMemberships.WithLabelValues(room).Set(float64(len(members)))
		}
	}
	delete(h.connections, id)

	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

func (h *Hub) roomsOf(id ConnectionID) []string {
	c, exists := h.connections[id]
	if !exists {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)
	return rooms
}

// closeAll sends a close frame with reason to every connection and empties the registry.
func (h *Hub) closeAll(reason string) {
	for id, c := range h.connections {
		c.writer.stopGraceful(reason)
		h.forget(id, c)
	}
}
