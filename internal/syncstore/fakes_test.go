package syncstore

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/votepulse/internal/client/transport"
	"github.com/pscheid92/votepulse/internal/domain"
)

type fakeTransport struct {
	mu        sync.Mutex
	onUpdate  transport.UpdateFunc
	onStatus  transport.StatusFunc
	published []domain.SyncState
	startErr  error
	closed    bool
	gate      chan struct{}
	failNext  error
	network   *fakeNetwork
}

func (f *fakeTransport) Start(_ context.Context, onUpdate transport.UpdateFunc, onStatus transport.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.onUpdate = onUpdate
	f.onStatus = onStatus
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, state domain.SyncState) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		f.mu.Unlock()
		return err
	}
	f.published = append(f.published, state)
	network := f.network
	f.mu.Unlock()

	if network != nil {
		network.broadcast(f, state)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) connect() {
	f.mu.Lock()
	onStatus := f.onStatus
	f.mu.Unlock()
	onStatus(true)
}

func (f *fakeTransport) disconnect() {
	f.mu.Lock()
	onStatus := f.onStatus
	f.mu.Unlock()
	onStatus(false)
}

// failNextPublish makes the next Publish return err instead of sending.
func (f *fakeTransport) failNextPublish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

func (f *fakeTransport) deliver(state domain.SyncState) {
	f.mu.Lock()
	onUpdate := f.onUpdate
	f.mu.Unlock()
	onUpdate(state)
}

func (f *fakeTransport) publishedStates() []domain.SyncState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SyncState(nil), f.published...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeNetwork relays a publish to every other attached transport, like the room relay.
type fakeNetwork struct {
	mu    sync.Mutex
	peers []*fakeTransport
}

func (n *fakeNetwork) attach(t *fakeTransport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t.network = n
	n.peers = append(n.peers, t)
}

func (n *fakeNetwork) broadcast(from *fakeTransport, state domain.SyncState) {
	n.mu.Lock()
	peers := append([]*fakeTransport(nil), n.peers...)
	n.mu.Unlock()

	for _, p := range peers {
		if p != from {
			p.deliver(state)
		}
	}
}

var errStorageDown = errors.New("storage down")

type memStorage struct {
	mu      sync.Mutex
	data    map[string]domain.SyncState
	saves   int
	loadErr error
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string]domain.SyncState)}
}

func (m *memStorage) Load(_ context.Context, name string) (*domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	state, ok := m.data[name]
	if !ok {
		return nil, nil
	}
	clone := state.Clone()
	return &clone, nil
}

func (m *memStorage) Save(_ context.Context, name string, state domain.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[name] = state.Clone()
	return nil
}

func (m *memStorage) stored(name string) (domain.SyncState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[name]
	return s, ok
}

func (m *memStorage) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
