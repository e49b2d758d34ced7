// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package goals

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Store persists per-platform goal state across restarts.
type Store interface {
	Save(ctx context.Context, platform string, state *State) error
	Load(ctx context.Context, platform string) (*State, error)
	Clear(ctx context.Context, platform string) error
}

// storeKey builds the BadgerDB key for one platform's goal state.
func storeKey(platform string) []byte {
	return []byte("goals:" + platform)
}

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a store on the provided BadgerDB instance.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens a BadgerDB at path and wraps it in a store. The
// caller owns the returned DB and must Close it on shutdown.
func OpenBadgerStore(path string) (*BadgerStore, *badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open goal store at %s: %w", path, err)
	}
	return NewBadgerStore(db), db, nil
}

// Save persists one platform's goal state.
func (s *BadgerStore) Save(_ context.Context, platform string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal goal state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(platform), data)
	})
}

// Load retrieves one platform's goal state. Returns nil, nil when no
// state has been saved.
func (s *BadgerStore) Load(_ context.Context, platform string) (*State, error) {
	var state State
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(platform))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load goal state: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

// Clear removes one platform's saved state.
func (s *BadgerStore) Clear(_ context.Context, platform string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(storeKey(platform))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// InMemoryStore implements Store in memory, for tests and for running
// without a persistence path configured.
type InMemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]State)}
}

// Save stores a copy of the state.
func (s *InMemoryStore) Save(_ context.Context, platform string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[platform] = *state
	return nil
}

// Load returns a copy of the saved state, or nil, nil.
func (s *InMemoryStore) Load(_ context.Context, platform string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[platform]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Clear removes the saved state.
func (s *InMemoryStore) Clear(_ context.Context, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, platform)
	return nil
}
