// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/metrics"
)

// ListID is the Tag id standing for a whole collection.
const ListID = "LIST"

// ErrCleared is returned to readers whose successful fetch was overtaken by
// Clear.
var ErrCleared = errors.New("cache cleared during fetch")

// Tag names data an entry provides.
type Tag struct {
	Type string
	ID   string
}

// ListTag is the collection tag for typ.
func ListTag(typ string) Tag {
	return Tag{Type: typ, ID: ListID}
}

// ItemTag is the tag of one entity.
func ItemTag(typ, id string) Tag {
	return Tag{Type: typ, ID: id}
}

func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

// FetchFunc loads the data for a key and reports the tags it provides.
type FetchFunc func(ctx context.Context) (data any, tags []Tag, err error)

// Result is what a read returns. Data and Err can both be set: a failed
// refetch keeps the last good data.
type Result struct {
	Data      any
	Err       error
	Stale     bool
	FetchedAt time.Time
}

// HasData reports whether Data holds a fetched value.
func (r Result) HasData() bool {
	return !r.FetchedAt.IsZero()
}

// Options tunes a Cache.
type Options struct {
	// KeepUnusedFor is how long an entry outlives its last subscriber.
	KeepUnusedFor time.Duration
	// CleanupInterval is the janitor period.
	CleanupInterval time.Duration
	// MaxAge makes entries stale with age. 0 disables.
	MaxAge time.Duration

	Clock func() time.Time
}

// Stats tracks cache activity.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Evictions     int64
	Entries       int64
}

type entry struct {
	key      string
	resource string

	data      any
	hasData   bool
	err       error
	tags      []Tag
	stale     bool
	fetchedAt time.Time

	// version is bumped by Invalidate so a fetch that started before an
	// invalidation stores its data as stale.
	version uint64

	subscribers int
	lastUsed    time.Time
	inflight    int
	watchers    map[*Subscription]struct{}
}

func (e *entry) result() Result {
	if !e.hasData {
		return Result{Err: e.err}
	}
	return Result{Data: e.data, Err: e.err, Stale: e.stale, FetchedAt: e.fetchedAt}
}

func (e *entry) provides(tags []Tag) bool {
	for _, have := range e.tags {
		for _, want := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Cache is the tag-invalidated entity cache.
type Cache struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	epoch   uint64
	stats   Stats

	flights singleflight.Group
}

// New creates a Cache. Run Serve (directly or under a supervisor) to
// collect unused entries.
func New(opts Options) *Cache {
	if opts.KeepUnusedFor <= 0 {
		opts.KeepUnusedFor = 60 * time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 15 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		opts:    opts,
		now:     opts.Clock,
		entries: make(map[string]*entry),
	}
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			key:      key,
			resource: resourceOf(key),
			lastUsed: c.now(),
			watchers: make(map[*Subscription]struct{}),
		}
		c.entries[key] = e
		metrics.CacheSize.Set(float64(len(c.entries)))
	}
	return e
}

func (c *Cache) staleLocked(e *entry, now time.Time) bool {
	if e.stale {
		return true
	}
	return c.opts.MaxAge > 0 && now.Sub(e.fetchedAt) >= c.opts.MaxAge
}

// Query returns the cached data for key, fetching when it is missing or
// stale.
func (c *Cache) Query(ctx context.Context, key string, fetch FetchFunc) Result {
	now := c.now()

	c.mu.Lock()
	e := c.entryLocked(key)
	if e.subscribers == 0 {
		e.lastUsed = now
	}
	if e.hasData && !c.staleLocked(e, now) {
		res := e.result()
		c.stats.Hits++
		c.mu.Unlock()
		metrics.RecordCacheLookup(e.resource, true)
		return res
	}
	c.stats.Misses++
	c.mu.Unlock()

	metrics.RecordCacheLookup(e.resource, false)
	return c.load(ctx, key, fetch)
}

// Refetch fetches key regardless of freshness. A fetch already in flight
// for key is joined rather than duplicated.
func (c *Cache) Refetch(ctx context.Context, key string, fetch FetchFunc) Result {
	return c.load(ctx, key, fetch)
}

// Peek returns the cached state of key without fetching.
func (c *Cache) Peek(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	res := e.result()
	res.Stale = res.Stale || (e.hasData && c.staleLocked(e, c.now()))
	return res, true
}

func (c *Cache) load(ctx context.Context, key string, fetch FetchFunc) Result {
	c.mu.Lock()
	flightKey := strconv.FormatUint(c.epoch, 10) + "/" + key
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flightKey, func() (any, error) {
		return c.fetch(detached, key, fetch), nil
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res
	case <-ctx.Done():
		c.mu.Lock()
		var res Result
		if e, ok := c.entries[key]; ok {
			res = e.result()
		}
		c.mu.Unlock()
		res.Err = ctx.Err()
		return res
	}
}

func (c *Cache) fetch(ctx context.Context, key string, fetch FetchFunc) Result {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.inflight++
	version, epoch := e.version, c.epoch
	c.mu.Unlock()

	data, tags, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.inflight--

	if c.epoch != epoch || c.entries[key] != e {
		// The caller still learns why its own fetch failed.
		if err != nil {
			return Result{Err: err}
		}
		return Result{Err: ErrCleared}
	}

	if err != nil {
		e.err = err
		if e.hasData {
			e.stale = true
		}
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Bool("kept_data", e.hasData).Msg("Cache fetch failed")
	} else {
		e.data, e.hasData, e.tags, e.err = data, true, tags, nil
		e.fetchedAt = c.now()
		e.stale = e.version != version
	}
	c.notifyLocked(e)
	return e.result()
}

// Invalidate marks every entry providing any of tags stale and notifies
// its subscribers. It returns the number of entries affected.
func (c *Cache) Invalidate(tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}
	return c.invalidate(joinTags(tags), func(e *entry) bool { return e.provides(tags) })
}

// InvalidateType marks every entry providing any tag of the given types
// stale, whatever the ID. It is for writes whose side effects reach
// entities the caller cannot name, such as activating one record
// deactivating its siblings.
func (c *Cache) InvalidateType(types ...string) int {
	if len(types) == 0 {
		return 0
	}
	return c.invalidate(strings.Join(types, ",")+":*", func(e *entry) bool {
		for _, have := range e.tags {
			if slices.Contains(types, have.Type) {
				return true
			}
		}
		return false
	})
}

func (c *Cache) invalidate(desc string, match func(*entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if !match(e) {
			continue
		}
		e.stale = true
		e.version++
		n++
		c.stats.Invalidations++
		metrics.CacheInvalidations.WithLabelValues(e.resource).Inc()
		c.notifyLocked(e)
	}
	if n > 0 {
		logging.Debug().Str("tags", desc).Int("entries", n).Msg("Cache invalidated")
	}
	return n
}

func (c *Cache) notifyLocked(e *entry) {
	for sub := range e.watchers {
		select {
		case sub.changes <- struct{}{}:
		default:
		}
	}
}

// Clear drops all cached data. Entries with live subscribers are kept
// empty and notified so their next read fetches; fetches in flight are
// discarded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for key, e := range c.entries {
		if e.subscribers == 0 {
			delete(c.entries, key)
			continue
		}
		e.data, e.hasData, e.err, e.tags, e.stale = nil, false, nil, nil, false
		e.fetchedAt = time.Time{}
		c.notifyLocked(e)
	}
	metrics.CacheSize.Set(float64(len(c.entries)))
}

// Collect removes entries without subscribers that have been unused for
// KeepUnusedFor. It returns the number removed.
func (c *Cache) Collect() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if e.subscribers > 0 || e.inflight > 0 {
			continue
		}
		if now.Sub(e.lastUsed) < c.opts.KeepUnusedFor {
			continue
		}
		delete(c.entries, key)
		n++
	}
	if n > 0 {
		c.stats.Evictions += int64(n)
		metrics.CacheEvictions.Add(float64(n))
		metrics.CacheSize.Set(float64(len(c.entries)))
	}
	return n
}

// Serve runs the janitor until ctx ends. It implements suture.Service.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.Collect(); n > 0 {
				logging.Debug().Int("evicted", n).Msg("Cache janitor pass")
			}
		}
	}
}

func (c *Cache) String() string {
	return "cache-janitor"
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = int64(len(c.entries))
	return s
}

// HitRate returns hits as a percentage of reads.
func (c *Cache) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// GenerateKey builds a cache key from a resource operation and its
// parameters. nil params yield the bare resource string.
//
//	GenerateKey("students:list", map[string]string{"class": "4"})
func GenerateKey(resource string, params any) string {
	if params == nil {
		return resource
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", resource, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", resource, hash[:16])
}

// resourceOf labels metrics with the key prefix.
func resourceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func joinTags(tags []Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}
