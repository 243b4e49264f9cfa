package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	channelPrefix   = "votepulse:relay:"
	bridgeQueueSize = 256
	publishTimeout  = 2 * time.Second
)

// Deliverer receives messages published by other instances.
type Deliverer interface {
	DeliverRemote(room string, data []byte)
}

type envelope struct {
	Instance string `json:"instance"`
	Data     []byte `json:"data"`
}

type outbound struct {
	room string
	data []byte
}

// Bridge relays room messages between instances over Redis pub/sub, one channel per room.
// Outbound messages are queued and published in order by a single goroutine.
type Bridge struct {
	rdb        *goredis.Client
	deliverer  Deliverer
	metrics    *metrics.RelayMetrics
	instanceID string
	queue      chan outbound

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge creates a bridge with a fresh instance ID. relayMetrics may be nil.
func NewBridge(rdb *goredis.Client, deliverer Deliverer, relayMetrics *metrics.RelayMetrics) *Bridge {
	return &Bridge{
		rdb:        rdb,
		deliverer:  deliverer,
		metrics:    relayMetrics,
		instanceID: uuid.NewString(),
		queue:      make(chan outbound, bridgeQueueSize),
	}
}

// InstanceID identifies this relay instance on the bridge.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

func roomChannel(room string) string {
	return channelPrefix + room
}

// Forward queues data for publication to other instances. It never blocks;
// messages are dropped while the queue is full.
func (b *Bridge) Forward(room string, data []byte) {
	select {
	case b.queue <- outbound{room: room, data: data}:
	default:
		slog.Warn("Bridge queue full, dropping message", "room", room)
		b.count("dropped")
	}
}

// Start subscribes to every room channel and returns once the subscription is confirmed.
// Stop must be called to release the subscription.
func (b *Bridge) Start(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to relay channels: %w", err)
	}

	// ctx bounds the subscribe only; the loops run until Stop.
	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.wg.Add(2)
	go b.publishLoop(ctx)
	go b.receiveLoop(ctx, sub)

	slog.Info("Relay bridge started", "instance_id", b.instanceID)
	return nil
}

// Stop ends both loops and waits for them to exit.
func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.wg.Wait()
	slog.Info("Relay bridge stopped", "instance_id", b.instanceID)
}

func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.queue:
			b.publish(ctx, msg)
		}
	}
}

func (b *Bridge) publish(ctx context.Context, msg outbound) {
	payload, err := json.Marshal(envelope{Instance: b.instanceID, Data: msg.data})
	if err != nil {
		slog.Error("Failed to marshal bridge envelope", "room", msg.room, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.rdb.Publish(pubCtx, roomChannel(msg.room), payload).Err(); err != nil {
		slog.Warn("Failed to publish to relay bridge", "room", msg.room, "error", err)
		b.count("publish_failed")
		return
	}
	b.count("outbound")
}

func (b *Bridge) receiveLoop(ctx context.Context, sub *goredis.PubSub) {
	defer b.wg.Done()
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.receive(msg)
		}
	}
}

func (b *Bridge) receive(msg *goredis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		slog.Warn("Failed to unmarshal bridge envelope", "channel", msg.Channel, "error", err)
		b.count("invalid")
		return
	}
	if env.Instance == b.instanceID {
		return
	}

	room := strings.TrimPrefix(msg.Channel, channelPrefix)
	b.deliverer.DeliverRemote(room, env.Data)
	b.count("inbound")
}

func (b *Bridge) count(direction string) {
	if b.metrics != nil {
		b.metrics.BridgeMessages.WithLabelValues(direction).Inc()
	}
}
