// Package bolt persists client sync state in a local bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pscheid92/votepulse/internal/domain"
	"go.etcd.io/bbolt"
)

const openTimeout = time.Second

var bucketSync = []byte("sync")

// Storage stores one JSON-encoded SyncState per storage name.
type Storage struct {
	db *bbolt.DB
}

// New opens (or creates) the database at path. It fails after a second if
// another process holds the file lock.
func New(path string) (*Storage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSync)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sync bucket: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database file.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the state saved under name, or nil if nothing was saved yet.
func (s *Storage) Load(ctx context.Context, name string) (*domain.SyncState, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSync).Get([]byte(name)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	if raw == nil {
		return nil, nil
	}

	var state domain.SyncState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", name, err)
	}
	state = state.Normalize()
	return &state, nil
}

// Save replaces the state stored under name.
func (s *Storage) Save(ctx context.Context, name string, state domain.SyncState) error {
	raw, err := json.Marshal(state.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", name, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSync).Put([]byte(name), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to save %q: %w", name, err)
	}
	return nil
}
