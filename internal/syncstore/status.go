package syncstore

// Status is the client's connection state as seen by the store.
type Status int

const (
	// Disconnected until the transport has joined the room.
	Disconnected Status = iota
	// ConnectedIdle means joined with no publish in flight.
	ConnectedIdle
	// ConnectedSyncing means joined with at least one outbound publish in flight.
	ConnectedSyncing
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedIdle:
		return "connected-idle"
	case ConnectedSyncing:
		return "connected-syncing"
	default:
		return "unknown"
	}
}
