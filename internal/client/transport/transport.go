// Package transport maintains the client's persistent connection to the relay.
//
// A Transport dials the relay, joins its room on every (re)connect and hands
// inbound votingUpdate payloads to the caller. Lost connections are redialed
// with capped exponential backoff until the transport is closed.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/pscheid92/votepulse/internal/platform/retry"
)

const (
	writeDeadline = 5 * time.Second
	pongWait      = 60 * time.Second
)

var (
	ErrNotConnected   = errors.New("transport not connected")
	ErrAlreadyStarted = errors.New("transport already started")
)

// UpdateFunc receives every valid state broadcast by a peer.
type UpdateFunc func(state domain.SyncState)

// StatusFunc is called with true after each successful join and false after each loss.
type StatusFunc func(connected bool)

type Option func(*Transport)

// WithRoom overrides the room joined on connect.
func WithRoom(room string) Option {
	return func(t *Transport) { t.room = room }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithRetryPolicy overrides the redial backoff.
func WithRetryPolicy(p retry.Policy) Option {
	return func(t *Transport) { t.policy = p }
}

// Transport is a reconnecting relay client.
type Transport struct {
	url    string
	room   string
	dialer *websocket.Dialer
	clock  clockwork.Clock
	policy retry.Policy

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a transport for the relay at serverURL (ws:// or wss://).
func New(serverURL string, clock clockwork.Clock, opts ...Option) *Transport {
	t := &Transport{
		url:    serverURL,
		room:   domain.VotingRoom,
		dialer: websocket.DefaultDialer,
		clock:  clock,
		policy: retry.Policy{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy.Clock == nil {
		t.policy.Clock = clock
	}
	if t.policy.OnRetry == nil {
		t.policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Relay dial failed, retrying", "url", t.url, "attempt", attempt, "backoff", backoff, "error", err)
		}
	}
	return t
}

// Start launches the connection loop in the background and returns immediately.
// onUpdate and onStatus are called from the loop goroutine.
func (t *Transport) Start(ctx context.Context, onUpdate UpdateFunc, onStatus StatusFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(ctx, onUpdate, onStatus)
	return nil
}

// Connected reports whether the transport currently holds a joined connection.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Publish sends the full state to the room. It fails with ErrNotConnected while offline.
func (t *Transport) Publish(ctx context.Context, state domain.SyncState) error {
	msg, err := domain.VotingUpdateMessage(t.room, state)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal votingUpdate: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	return t.write(t.conn, data)
}

// Close stops the connection loop, sends a close frame and waits for the loop to exit.
func (t *Transport) Close() error {
	t.mu.Lock()
	cancel, conn := t.cancel, t.conn
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
		_ = conn.WriteControl(websocket.CloseMessage, msg, t.clock.Now().Add(writeDeadline))
	}
	cancel()
	t.wg.Wait()
	return nil
}

func (t *Transport) loop(ctx context.Context, onUpdate UpdateFunc, onStatus StatusFunc) {
	defer t.wg.Done()

	for {
		conn, err := retry.Do(ctx, t.policy, retry.Always, t.dial)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Relay dial gave up", "url", t.url, "error", err)
			}
			return
		}

		// Closing the socket on cancellation unblocks the read below.
		stopClosing := context.AfterFunc(ctx, func() { _ = conn.Close() })

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		slog.Info("Connected to relay", "url", t.url, "room", t.room)
		onStatus(true)

		err = t.read(conn, onUpdate)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		stopClosing()
		_ = conn.Close()
		onStatus(false)

		if ctx.Err() != nil {
			return
		}
		slog.Warn("Relay connection lost", "url", t.url, "error", err)
	}
}

// dial connects and joins the room; joining is part of connecting so every
// reconnect lands back in the room.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	join, err := json.Marshal(domain.JoinRoomMessage(t.room))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to marshal joinRoom: %w", err)
	}
	if err := t.write(conn, join); err != nil {
		_ = conn.Close()
		return nil, err
	}

	t.armReadDeadline(conn)
	conn.SetPingHandler(func(appData string) error {
		t.armReadDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), t.clock.Now().Add(writeDeadline))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	return conn, nil
}

func (t *Transport) read(conn *websocket.Conn, onUpdate UpdateFunc) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := domain.ParseMessage(data)
		if err != nil {
			slog.Warn("Ignoring invalid relay frame", "error", err)
			continue
		}
		if msg.Event != domain.EventVotingUpdate {
			continue
		}

		state, err := domain.DecodeState(msg.Payload)
		if err != nil {
			slog.Warn("Ignoring invalid votingUpdate", "error", err)
			continue
		}
		onUpdate(state)
	}
}

func (t *Transport) write(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write to relay: %w", err)
	}
	return nil
}

func (t *Transport) armReadDeadline(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(t.clock.Now().Add(pongWait))
}
