// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package tokenstore persists the signed-in user and their tokens in one of
// two scopes: a persistent scope that survives restarts ("remember me") and
// a session scope that lives only as long as the process.
//
// At most one scope holds credentials at a time. Save writes the chosen
// scope and clears the other; Clear empties both.
package tokenstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/schoolhub/internal/models"
)

// Storage keys shared by both scopes.
const (
	KeyUser         = "user"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

var allKeys = []string{KeyUser, KeyAccessToken, KeyRefreshToken}

// Scope identifies where credentials live.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeSession
	ScopePersistent
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopePersistent:
		return "persistent"
	default:
		return "none"
	}
}

// ErrCorrupt means a scope held a user record that could not be decoded.
var ErrCorrupt = errors.New("stored credentials are corrupt")

// Credentials is the blob written to a scope.
type Credentials struct {
	User         *models.UserRecord
	AccessToken  string
	RefreshToken string
}

// Store selects between the two scopes.
type Store struct {
	mu         sync.Mutex
	persistent KV
	session    KV
	active     Scope
}

// New returns a Store over the given scopes.
func New(persistent, session KV) *Store {
	return &Store{persistent: persistent, session: session}
}

// NewMemory returns a Store whose scopes are both in memory.
func NewMemory() *Store {
	return New(NewMemoryKV(), NewMemoryKV())
}

func (s *Store) kv(scope Scope) KV {
	if scope == ScopePersistent {
		return s.persistent
	}
	return s.session
}

// Save writes c to the persistent scope when rememberMe is set, otherwise
// to the session scope, after clearing the other scope.
func (s *Store) Save(c Credentials, rememberMe bool) error {
	target, other := ScopeSession, ScopePersistent
	if rememberMe {
		target, other = ScopePersistent, ScopeSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := clearKV(s.kv(other)); err != nil {
		return fmt.Errorf("clear %s scope: %w", other, err)
	}

	kv := s.kv(target)
	if c.User != nil {
		data, err := json.Marshal(c.User)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		if err := kv.Set(KeyUser, string(data)); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
	} else if err := kv.Remove(KeyUser); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := setOrRemove(kv, KeyAccessToken, c.AccessToken); err != nil {
		return err
	}
	if err := setOrRemove(kv, KeyRefreshToken, c.RefreshToken); err != nil {
		return err
	}
	s.active = target
	return nil
}

// Load returns the stored credentials and their scope. The persistent scope
// is checked first. ScopeNone with a nil error means nothing is stored.
func (s *Store) Load() (Credentials, Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scope := range []Scope{ScopePersistent, ScopeSession} {
		c, found, err := readKV(s.kv(scope))
		if err != nil {
			return Credentials{}, scope, fmt.Errorf("load %s scope: %w", scope, err)
		}
		if found {
			s.active = scope
			return c, scope, nil
		}
	}
	s.active = ScopeNone
	return Credentials{}, ScopeNone, nil
}

// UpdateTokens writes new tokens into whichever scope currently holds
// credentials. An empty refresh keeps the stored refresh token.
func (s *Store) UpdateTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := s.active
	if scope == ScopeNone {
		// Tokens never refresh without a prior Save or Load; default to the
		// non-durable scope rather than silently persisting.
		scope = ScopeSession
	}
	kv := s.kv(scope)
	if err := kv.Set(KeyAccessToken, access); err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if refresh != "" {
		if err := kv.Set(KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("update refresh token: %w", err)
		}
	}
	return nil
}

// Clear removes credentials from both scopes. Both are attempted even if
// one fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = ScopeNone
	return errors.Join(clearKV(s.persistent), clearKV(s.session))
}

// ActiveScope reports the scope last written or loaded.
func (s *Store) ActiveScope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func setOrRemove(kv KV, key, value string) error {
	var err error
	if value == "" {
		err = kv.Remove(key)
	} else {
		err = kv.Set(key, value)
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func clearKV(kv KV) error {
	var errs []error
	for _, key := range allKeys {
		if err := kv.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readKV reports found when any credential key is present.
func readKV(kv KV) (Credentials, bool, error) {
	var c Credentials
	raw, hasUser, err := kv.Get(KeyUser)
	if err != nil {
		return c, false, err
	}
	if hasUser {
		var u models.UserRecord
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return c, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		c.User = &u
	}
	access, hasAccess, err := kv.Get(KeyAccessToken)
	if err != nil {
		return c, false, err
	}
	refresh, hasRefresh, err := kv.Get(KeyRefreshToken)
	if err != nil {
		return c, false, err
	}
	c.AccessToken, c.RefreshToken = access, refresh
	return c, hasUser || hasAccess || hasRefresh, nil
}
