// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package tokenstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// KV is one durable storage scope.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove succeeds when the key is already absent.
	Remove(key string) error
}

// MemoryKV is a process-lifetime scope. It backs the session scope: its
// contents disappear when the process exits.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present. It never fails.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// keyPrefix namespaces credentials so the database can hold other data.
const keyPrefix = "schoolhub:credentials:"

// BadgerKV is the persistent scope, surviving restarts.
type BadgerKV struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerKV opens (or creates) a BadgerDB at path. An empty path opens
// an in-memory database, useful for tests and ephemeral runs.
func OpenBadgerKV(path string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for credentials: %w", err)
	}
	return &BadgerKV{db: db, ownsDB: true}, nil
}

// NewBadgerKV wraps an already open database. Close leaves it open.
func NewBadgerKV(db *badger.DB) *BadgerKV {
	return &BadgerKV{db: db}
}

// Get reads key in a read-only transaction. A missing key reports
// found=false with a nil error; only storage failures are errors.
func (b *BadgerKV) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set writes key in its own transaction, so each credential field is
// durable on return.
func (b *BadgerKV) Set(key, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyPrefix+key), []byte(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

// Remove deletes key. Badger treats deleting an absent key as a no-op.
func (b *BadgerKV) Remove(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyPrefix + key)); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Close closes the database when OpenBadgerKV opened it.
func (b *BadgerKV) Close() error {
	if b.ownsDB {
		return b.db.Close()
	}
	return nil
}

var (
	_ KV = (*MemoryKV)(nil)
	_ KV = (*BadgerKV)(nil)
	_ KV = (*EncryptedKV)(nil)
)
