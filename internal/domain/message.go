package domain

import (
	"encoding/json"
	"fmt"
)

// Event names carried on the wire. votingUpdate is used in both directions.
const (
	EventJoinRoom     = "joinRoom"
	EventVotingUpdate = "votingUpdate"
)

// VotingRoom is the single room this system uses.
const VotingRoom = "votingRoom"

// Message is the JSON envelope exchanged over the persistent connection.
type Message struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoomMessage builds a joinRoom request.
func JoinRoomMessage(room string) Message {
	return Message{Event: EventJoinRoom, Room: room}
}

// VotingUpdateMessage wraps a full state snapshot.
func VotingUpdateMessage(room string, state SyncState) (Message, error) {
	payload, err := json.Marshal(state.Normalize())
	if err != nil {
		return Message{}, fmt.Errorf("marshal sync state: %w", err)
	}
	return Message{Event: EventVotingUpdate, Room: room, Payload: payload}, nil
}

// ParseMessage decodes and sanity-checks an inbound frame.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch msg.Event {
	case EventJoinRoom:
		if msg.Room == "" {
			return Message{}, fmt.Errorf("%w: joinRoom without room", ErrInvalidMessage)
		}
	case EventVotingUpdate:
		if len(msg.Payload) == 0 {
			return Message{}, fmt.Errorf("%w: votingUpdate without payload", ErrInvalidMessage)
		}
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
	return msg, nil
}

// wireFields records which top-level fields a payload carries. A field that is
// absent would decode as empty and erase that part of every peer's state.
type wireFields struct {
	VotingData   json.RawMessage `json:"votingData"`
	ActivityLogs json.RawMessage `json:"activityLogs"`
	VotingDates  json.RawMessage `json:"votingDates"`
	CurrentDate  json.RawMessage `json:"currentDate"`
}

func (w wireFields) check() error {
	lists := []struct {
		name string
		raw  json.RawMessage
	}{
		{"votingData", w.VotingData},
		{"activityLogs", w.ActivityLogs},
		{"votingDates", w.VotingDates},
	}
	for _, l := range lists {
		if l.raw == nil || string(l.raw) == "null" {
			return fmt.Errorf("%w: %s missing", ErrInvalidState, l.name)
		}
	}
	// currentDate may be null, but it must be sent.
	if w.CurrentDate == nil {
		return fmt.Errorf("%w: currentDate missing", ErrInvalidState)
	}
	return nil
}

// DecodeState decodes and validates a votingUpdate payload.
// Every field of SyncState must be present.
func DecodeState(payload []byte) (SyncState, error) {
	var fields wireFields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return SyncState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := fields.check(); err != nil {
		return SyncState{}, err
	}

	var state SyncState
	if err := json.Unmarshal(payload, &state); err != nil {
		return SyncState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := state.Validate(); err != nil {
		return SyncState{}, err
	}
	return state.Normalize(), nil
}
