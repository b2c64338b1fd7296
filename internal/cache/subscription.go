// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package cache

import (
	"context"
	"sync"
)

// Subscription keeps an entry alive and reports when it changes.
type Subscription struct {
	c       *Cache
	key     string
	fetch   FetchFunc
	changes chan struct{}
	once    sync.Once
}

// Subscribe registers interest in key. The entry is not fetched until the
// first Read.
func (c *Cache) Subscribe(key string, fetch FetchFunc) *Subscription {
	s := &Subscription{
		c:       c,
		key:     key,
		fetch:   fetch,
		changes: make(chan struct{}, 1),
	}

	c.mu.Lock()
	e := c.entryLocked(key)
	e.subscribers++
	e.watchers[s] = struct{}{}
	c.mu.Unlock()
	return s
}

// Key returns the subscribed cache key.
func (s *Subscription) Key() string {
	return s.key
}

// Read returns cached data, fetching when missing or stale.
func (s *Subscription) Read(ctx context.Context) Result {
	return s.c.Query(ctx, s.key, s.fetch)
}

// Refetch forces a fetch.
func (s *Subscription) Refetch(ctx context.Context) Result {
	return s.c.Refetch(ctx, s.key, s.fetch)
}

// Changes receives a value after new data arrives, a fetch fails, or the
// entry is invalidated or cleared. Notifications coalesce. The channel is
// closed by Unsubscribe.
func (s *Subscription) Changes() <-chan struct{} {
	return s.changes
}

// Unsubscribe releases the entry. After the last subscriber leaves, the
// entry is collected once KeepUnusedFor has passed. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.c
		c.mu.Lock()
		if e, ok := c.entries[s.key]; ok {
			if _, watching := e.watchers[s]; watching {
				delete(e.watchers, s)
				e.subscribers--
				if e.subscribers == 0 {
					e.lastUsed = c.now()
				}
			}
		}
		close(s.changes)
		c.mu.Unlock()
	})
}
