package syncstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/votepulse/internal/catalog"
	"github.com/pscheid92/votepulse/internal/client/transport"
	"github.com/pscheid92/votepulse/internal/domain"
)

// StorageKey is the name the state is persisted under.
const StorageKey = "voting-storage"

const (
	commandBufferSize = 64
	outboxSize        = 64
	publishTimeout    = 5 * time.Second
)

var (
	ErrNotOpen     = errors.New("sync store not open")
	ErrClosed      = errors.New("sync store closed")
	ErrAlreadyOpen = errors.New("sync store already opened")
)

// Transport is the relay connection the store publishes through and receives from.
type Transport interface {
	Start(ctx context.Context, onUpdate transport.UpdateFunc, onStatus transport.StatusFunc) error
	Publish(ctx context.Context, state domain.SyncState) error
	Close() error
}

// Storage is durable key-value storage for the synced state.
// Load returns nil, nil when nothing is stored under name.
type Storage interface {
	Load(ctx context.Context, name string) (*domain.SyncState, error)
	Save(ctx context.Context, name string, state domain.SyncState) error
}

type Option func(*Store)

// WithStorageKey overrides StorageKey.
func WithStorageKey(name string) Option {
	return func(s *Store) { s.storageKey = name }
}

type lifecycle int

const (
	lifecycleNew lifecycle = iota
	lifecycleOpen
	lifecycleClosed
)

// Store is the client sync store. Construct with New, then Open.
type Store struct {
	transport  Transport
	storage    Storage
	catalog    *catalog.Catalog
	clock      clockwork.Clock
	storageKey string

	cmdCh   chan func()
	stopCh  chan struct{}
	done    chan struct{}
	outbox  chan outgoing
	pending atomic.Int64
	wg      sync.WaitGroup

	lifeMu    sync.Mutex
	lifecycle lifecycle
	opened    atomic.Bool

	subMu      sync.Mutex
	subs       map[uint64]chan domain.SyncState
	nextSub    uint64
	subsClosed bool

	// owned by run
	state     domain.SyncState
	connected bool
	// epoch counts connects; a publish that fails for lack of a connection
	// is retried at once only if the transport has reconnected since.
	epoch uint64
	// unpublished is set when the latest committed state has not reached the
	// relay. Publishes carry the whole state, so one flag is enough.
	unpublished bool
}

type outgoing struct {
	state domain.SyncState
	epoch uint64
}

// New creates a store. storage may be nil for a memory-only store.
func New(t Transport, storage Storage, cat *catalog.Catalog, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		transport:  t,
		storage:    storage,
		catalog:    cat,
		clock:      clock,
		storageKey: StorageKey,
		cmdCh:      make(chan func(), commandBufferSize),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		outbox:     make(chan outgoing, outboxSize),
		subs:       make(map[uint64]chan domain.SyncState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the persisted state, starts the event loop and connects the transport.
func (s *Store) Open(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	switch s.lifecycle {
	case lifecycleOpen:
		return ErrAlreadyOpen
	case lifecycleClosed:
		return ErrClosed
	}

	s.state = s.load(ctx)
	s.lifecycle = lifecycleOpen
	s.opened.Store(true)

	s.wg.Add(2)
	go s.run()
	go s.publishLoop()

	// The transport outlives the caller's ctx; Close stops it.
	if err := s.transport.Start(context.WithoutCancel(ctx), s.onRemoteUpdate, s.onTransportStatus); err != nil {
		s.stop()
		s.lifecycle = lifecycleClosed
		s.closeSubscribers()
		return err
	}
	return nil
}

// Close flushes the state to storage, disconnects the transport and stops the event loop.
func (s *Store) Close(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.lifecycle != lifecycleOpen {
		s.lifecycle = lifecycleClosed
		s.closeSubscribers()
		return nil
	}
	s.lifecycle = lifecycleClosed

	var errs []error
	if _, err := call(ctx, s, func() struct{} {
		s.persist()
		return struct{}{}
	}); err != nil {
		errs = append(errs, err)
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	s.stop()

	s.closeSubscribers()

	return errors.Join(errs...)
}

func (s *Store) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsClosed = true
}

func (s *Store) stop() {
	close(s.stopCh)
	<-s.done
	close(s.outbox)
	s.wg.Wait()
}

// Places returns the static place list.
func (s *Store) Places() []domain.Place {
	return s.catalog.Places
}

// Subscribe returns a channel that receives every committed state, and a func that
// unsubscribes. Slow subscribers miss states instead of blocking the store.
// After Close the channel is already closed.
func (s *Store) Subscribe() (<-chan domain.SyncState, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subsClosed {
		ch := make(chan domain.SyncState)
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.SyncState, 8)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[id]; ok {
				close(ch)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Store) run() {
	defer s.wg.Done()
	defer close(s.done)

	for {
		select {
		case fn := <-s.cmdCh:
			fn()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) publishLoop() {
	defer s.wg.Done()

	for msg := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := s.transport.Publish(ctx, msg.state)
		cancel()
		if errors.Is(err, transport.ErrNotConnected) {
			slog.Info("Relay connection dropped, voting update kept for reconnect")
			s.onPublishOffline(msg.epoch)
		} else if err != nil {
			slog.Warn("Failed to publish voting update", "error", err)
		}
		s.pending.Add(-1)
	}
}

func (s *Store) enqueue(ctx context.Context, fn func()) error {
	if !s.opened.Load() {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.cmdCh <- fn:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the event loop and waits for its result.
func call[T any](ctx context.Context, s *Store, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := s.enqueue(ctx, func() { reply <- fn() }); err != nil {
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}

func (s *Store) load(ctx context.Context) domain.SyncState {
	if s.storage == nil {
		return s.catalog.InitialState()
	}

	stored, err := s.storage.Load(ctx, s.storageKey)
	switch {
	case err != nil:
		slog.Warn("Failed to load persisted state, using defaults", "key", s.storageKey, "error", err)
		return s.catalog.InitialState()
	case stored == nil:
		slog.Info("No persisted state, using defaults", "key", s.storageKey)
		return s.catalog.InitialState()
	}

	if err := stored.Validate(); err != nil {
		slog.Warn("Persisted state is invalid, using defaults", "key", s.storageKey, "error", err)
		return s.catalog.InitialState()
	}
	slog.Info("Loaded persisted state", "key", s.storageKey, "records", len(stored.VotingData))
	return stored.Clone()
}

// commit installs next, persists it, notifies subscribers, and optionally publishes it.
// Runs on the event loop.
func (s *Store) commit(next domain.SyncState, publish bool) {
	s.state = next
	s.persist()
	s.notify()
	if publish {
		s.publish()
	}
}

func (s *Store) persist() {
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(context.Background(), s.storageKey, s.state.Clone()); err != nil {
		slog.Warn("Failed to persist state", "key", s.storageKey, "error", err)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- s.state.Clone():
		default:
		}
	}
}

func (s *Store) publish() {
	if !s.connected {
		slog.Debug("Offline, voting update queued until reconnect")
		s.unpublished = true
		return
	}

	s.unpublished = false
	s.pending.Add(1)
	select {
	case s.outbox <- outgoing{state: s.state.Clone(), epoch: s.epoch}:
	default:
		s.pending.Add(-1)
		slog.Warn("Publish queue full, voting update dropped")
	}
}

func (s *Store) status() Status {
	switch {
	case !s.connected:
		return Disconnected
	case s.pending.Load() > 0:
		return ConnectedSyncing
	default:
		return ConnectedIdle
	}
}

func (s *Store) onRemoteUpdate(state domain.SyncState) {
	err := s.enqueue(context.Background(), func() {
		slog.Debug("Applying voting update from relay", "records", len(state.VotingData))
		s.commit(state.Clone(), false)
	})
	if err != nil {
		slog.Debug("Dropped voting update", "error", err)
	}
}

func (s *Store) onTransportStatus(connected bool) {
	err := s.enqueue(context.Background(), func() {
		s.connected = connected
		if connected {
			s.epoch++
		}
		slog.Info("Sync status changed", "status", s.status().String())
		if connected && s.unpublished {
			s.publish()
		}
	})
	if err != nil {
		slog.Debug("Dropped transport status change", "connected", connected, "error", err)
	}
}

// onPublishOffline marks the state unpublished after the transport reported no
// connection. If a reconnect was already processed, the flush it triggered has
// missed this state, so it is published again right away.
func (s *Store) onPublishOffline(epoch uint64) {
	err := s.enqueue(context.Background(), func() {
		s.unpublished = true
		if s.connected && s.epoch != epoch {
			s.publish()
		}
	})
	if err != nil {
		slog.Debug("Dropped offline publish notice", "error", err)
	}
}
