package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/votepulse/internal/adapter/bolt"
	"github.com/pscheid92/votepulse/internal/catalog"
	"github.com/pscheid92/votepulse/internal/client/transport"
	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/pscheid92/votepulse/internal/syncstore"
)

const pollInterval = 50 * time.Millisecond

// offlineTransport never connects, so mutations are only persisted locally.
type offlineTransport struct{}

func (offlineTransport) Start(context.Context, transport.UpdateFunc, transport.StatusFunc) error {
	return nil
}

func (offlineTransport) Publish(context.Context, domain.SyncState) error {
	return transport.ErrNotConnected
}

func (offlineTransport) Close() error { return nil }

type session struct {
	store   *syncstore.Store
	storage *bolt.Storage
	clock   clockwork.Clock
}

// openSession opens the local store and, unless offline, waits up to the
// configured timeout for the relay. A relay that stays unreachable is not
// fatal: the command then runs against the local state.
func openSession(ctx context.Context) (*session, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	storage, err := bolt.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	var t syncstore.Transport = offlineTransport{}
	if !globalFlags.offline {
		t = transport.New(cfg.ServerURL, clock)
	}

	store := syncstore.New(t, storage, cat, clock)
	if err := store.Open(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &session{store: store, storage: storage, clock: clock}
	if !globalFlags.offline {
		if err := s.waitFor(ctx, func(st syncstore.Status) bool { return st != syncstore.Disconnected }); err != nil {
			slog.Warn("Relay unreachable, working offline", "url", cfg.ServerURL, "error", err)
		}
	}
	return s, nil
}

// close waits for in-flight publishes, then flushes and releases everything.
func (s *session) close(ctx context.Context) error {
	// Runs after an interrupt too, so it must not inherit cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := s.waitFor(ctx, func(st syncstore.Status) bool { return st != syncstore.ConnectedSyncing }); err != nil {
		slog.Warn("Voting update may not have reached the relay", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(ctx, globalFlags.timeout)
	defer cancel()
	return errors.Join(s.store.Close(closeCtx), s.storage.Close())
}

func (s *session) waitFor(ctx context.Context, done func(syncstore.Status) bool) error {
	deadline := s.clock.After(globalFlags.timeout)
	ticker := s.clock.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.store.Status(ctx)
		if err != nil {
			return err
		}
		if done(status) {
			return nil
		}

		select {
		case <-ticker.Chan():
		case <-deadline:
			return fmt.Errorf("still %s after %s", status, globalFlags.timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// withSession runs fn against an open session and always closes it.
func withSession(ctx context.Context, fn func(*session) error) (err error) {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(ctx))
	}()
	return fn(s)
}
