package httpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/pscheid92/votepulse/internal/platform/correlation"
	"github.com/pscheid92/votepulse/internal/relay"
)

const maxMessageSize = 1 << 20

// handleWebSocket upgrades the request, registers the connection and runs its
// read pump until the peer goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.Debug("WebSocket upgrade failed", "error", err)
		return nil
	}

	id, err := s.hub.Connect(conn)
	if err != nil {
		slog.Warn("WebSocket connection rejected", "remote_addr", c.RealIP(), "error", err)
		return nil
	}

	// Frame logs carry both the request and the connection ID.
	ctx := correlation.WithConnection(c.Request().Context(), string(id))
	s.readPump(ctx, id, conn)
	return nil
}

func (s *Server) readPump(ctx context.Context, id relay.ConnectionID, conn *websocket.Conn) {
	defer s.hub.Disconnect(id)

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.InfoContext(ctx, "WebSocket read failed", "error", err)
			}
			return
		}
		s.handleFrame(ctx, id, data)
	}
}

func (s *Server) handleFrame(ctx context.Context, id relay.ConnectionID, data []byte) {
	msg, err := domain.ParseMessage(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrUnknownEvent) {
			reason = "unknown_event"
		}
		s.reject(ctx, reason, err)
		return
	}

	switch msg.Event {
	case domain.EventJoinRoom:
		s.hub.Join(id, msg.Room)
	case domain.EventVotingUpdate:
		if _, err := domain.DecodeState(msg.Payload); err != nil {
			s.reject(ctx, "invalid_state", err)
			return
		}
		room := msg.Room
		if room == "" {
			room = domain.VotingRoom
		}
		s.hub.Publish(id, room, data)
	}
}

func (s *Server) reject(ctx context.Context, reason string, err error) {
	slog.WarnContext(ctx, "Dropping invalid frame", "reason", reason, "error", err)
	if s.relayMetrics != nil {
		s.relayMetrics.InvalidMessages.WithLabelValues(reason).Inc()
	}
}
