package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/votepulse/internal/domain"
	apperrors "github.com/pscheid92/votepulse/internal/platform/errors"
	"github.com/pscheid92/votepulse/internal/platform/logging"
)

type roomResponse struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
}

func (s *Server) handleRoomInfo(c echo.Context) error {
	room := c.Param("room")
	members := s.hub.Members(room)
	if members < 0 {
		return apperrors.UnavailableError("relay unavailable", nil).WithField("room", room)
	}

	if err := c.JSON(http.StatusOK, roomResponse{Room: room, Members: members}); err != nil {
		return fmt.Errorf("failed to write room response: %w", err)
	}
	return nil
}

// handleRoomState broadcasts a full state to every member of the room, the
// same way a client publish would.
func (s *Server) handleRoomState(c echo.Context) error {
	room := c.Param("room")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxMessageSize+1))
	if err != nil {
		return apperrors.ValidationError("failed to read request body", err)
	}
	if len(body) > maxMessageSize {
		return apperrors.ValidationError("request body too large", nil).WithField("room", room)
	}

	state, err := domain.DecodeState(body)
	if err != nil {
		return apperrors.ValidationError("invalid sync state", err).WithField("room", room)
	}

	msg, err := domain.VotingUpdateMessage(room, state)
	if err != nil {
		return apperrors.InternalError("failed to encode voting update", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.InternalError("failed to encode voting update", err)
	}

	logging.WithRoom(room).InfoContext(c.Request().Context(), "Broadcasting state from API", "records", len(state.VotingData))
	s.hub.Broadcast(room, data)

	if err := c.JSON(http.StatusAccepted, roomResponse{Room: room, Members: s.hub.Members(room)}); err != nil {
		return fmt.Errorf("failed to write room response: %w", err)
	}
	return nil
}
