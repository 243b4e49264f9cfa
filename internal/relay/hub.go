package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/votepulse/internal/adapter/metrics"
)

const (
	commandTimeout    = 5 * time.Second
	stopTimeout       = 10 * time.Second
	commandBufferSize = 256
)

// ErrHubStopped is returned by Connect after Stop.
var ErrHubStopped = errors.New("relay hub stopped")

// ConnectionID is the opaque identifier assigned to a registered connection.
type ConnectionID string

// Bridge forwards locally published messages to other relay instances.
// Forward must not block.
type Bridge interface {
	Forward(room string, data []byte)
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type connectCmd struct {
	baseHubCmd
	conn    *websocket.Conn
	replyCh chan connectResult
}

type connectResult struct {
	id  ConnectionID
	err error
}

type joinCmd struct {
	baseHubCmd
	id   ConnectionID
	room string
}

type disconnectCmd struct {
	baseHubCmd
	id ConnectionID
}

type publishCmd struct {
	baseHubCmd
	from    ConnectionID
	room    string
	data    []byte
	forward bool
}

type membersCmd struct {
	baseHubCmd
	room    string
	replyCh chan int
}

type roomsCmd struct {
	baseHubCmd
	id      ConnectionID
	replyCh chan []string
}

type connectionCountCmd struct {
	baseHubCmd
	replyCh chan int
}

type setBridgeCmd struct {
	baseHubCmd
	bridge Bridge
}

type stopCmd struct {
	baseHubCmd
}

type connection struct {
	writer *clientWriter
	rooms  map[string]struct{}
}

// Hub is the registry and relay actor.
type Hub struct {
	cmdCh          chan hubCmd
	clock          clockwork.Clock
	connections    map[ConnectionID]*connection
	rooms          map[string]map[ConnectionID]struct{}
	bridge         Bridge
	metrics        *metrics.RelayMetrics
	maxConnections int
	done           chan struct{}
}

// NewHub starts the relay actor.
// maxConnections caps the total number of registered connections.
// relayMetrics may be nil.
func NewHub(clock clockwork.Clock, maxConnections int, relayMetrics *metrics.RelayMetrics) *Hub {
	h := &Hub{
		cmdCh:          make(chan hubCmd, commandBufferSize),
		clock:          clock,
		connections:    make(map[ConnectionID]*connection),
		rooms:          make(map[string]map[ConnectionID]struct{}),
		metrics:        relayMetrics,
		maxConnections: maxConnections,
		done:           make(chan struct{}),
	}
	go h.run()
	return h
}

// SetBridge attaches a cross-instance bridge. Publishes issued after this call are forwarded.
func (h *Hub) SetBridge(b Bridge) {
	h.send(setBridgeCmd{bridge: b})
}

// Connect registers a connection and starts its writer.
// Returns an error if the connection cap is reached; the connection is closed in that case.
func (h *Hub) Connect(conn *websocket.Conn) (ConnectionID, error) {
	replyCh := make(chan connectResult, 1)
	if !h.send(connectCmd{conn: conn, replyCh: replyCh}) {
		_ = conn.Close()
		return "", ErrHubStopped
	}

	res := awaitReply(h, replyCh, connectResult{err: fmt.Errorf("connect command did not complete within %v", commandTimeout)})
	return res.id, res.err
}

// Join adds the connection to room. Joining twice is a no-op; unknown ids are ignored.
func (h *Hub) Join(id ConnectionID, room string) {
	h.send(joinCmd{id: id, room: room})
}

// Disconnect removes the connection and all its memberships. Unknown ids are ignored.
func (h *Hub) Disconnect(id ConnectionID) {
	h.send(disconnectCmd{id: id})
}

// Publish delivers data to every member of room except from, and forwards it to the bridge.
func (h *Hub) Publish(from ConnectionID, room string, data []byte) {
	h.send(publishCmd{from: from, room: room, data: data, forward: true})
}

// Broadcast delivers server-originated data to every member of room and forwards it to the bridge.
func (h *Hub) Broadcast(room string, data []byte) {
	h.send(publishCmd{room: room, data: data, forward: true})
}

// DeliverRemote delivers data received from another instance to every local member of room.
func (h *Hub) DeliverRemote(room string, data []byte) {
	h.send(publishCmd{room: room, data: data})
}

// Members returns the number of connections joined to room. Returns -1 on timeout.
func (h *Hub) Members(room string) int {
	replyCh := make(chan int, 1)
	if !h.send(membersCmd{room: room, replyCh: replyCh}) {
		return -1
	}
	return awaitReply(h, replyCh, -1)
}

// Rooms returns the rooms the connection has joined, or nil if it is unknown.
func (h *Hub) Rooms(id ConnectionID) []string {
	replyCh := make(chan []string, 1)
	if !h.send(roomsCmd{id: id, replyCh: replyCh}) {
		return nil
	}
	return awaitReply(h, replyCh, nil)
}

// ConnectionCount returns the number of registered connections. Returns -1 on timeout.
func (h *Hub) ConnectionCount() int {
	replyCh := make(chan int, 1)
	if !h.send(connectionCountCmd{replyCh: replyCh}) {
		return -1
	}
	return awaitReply(h, replyCh, -1)
}

// Stop closes every connection with a close frame and waits for the actor to exit.
func (h *Hub) Stop() {
	if !h.send(stopCmd{}) {
		return
	}

	timeout := h.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Relay hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Relay hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

// send enqueues cmd unless the actor has exited.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func awaitReply[T any](h *Hub, replyCh <-chan T, fallback T) T {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case v := <-replyCh:
		return v
	case <-h.done:
		select {
		case v := <-replyCh:
			return v
		default:
			return fallback
		}
	case <-timer.Chan():
		slog.Warn("Relay hub query timed out", "timeout", commandTimeout)
		return fallback
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Relay hub panic recovered", "panic", r)
			h.closeAll("relay failure")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case connectCmd:
			id, err := h.handleConnect(c.conn)
			c.replyCh <- connectResult{id: id, err: err}
		case joinCmd:
			h.handleJoin(c.id, c.room)
		case disconnectCmd:
			h.handleDisconnect(c.id)
		case publishCmd:
			h.handlePublish(c)
		case membersCmd:
			c.replyCh <- len(h.rooms[c.room])
		case roomsCmd:
			c.replyCh <- h.roomsOf(c.id)
		case connectionCountCmd:
			c.replyCh <- len(h.connections)
		case setBridgeCmd:
			h.bridge = c.bridge
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Relay hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleStop() {
	total := len(h.connections)
	slog.Info("Relay hub shutting down", "connections", total, "rooms", len(h.rooms))
	h.closeAll("Server shutting down")
	slog.Info("Relay hub shutdown complete", "disconnected_clients", total)
}

func newConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}
