// Package cache provides a keyed in-process cache with per-entry TTL,
// prefix invalidation and single-flight fetch coalescing. It is the shared
// read-path primitive for the contract list queries.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key is a structured cache key. Keys are tuples rather than concatenated
// strings so prefix invalidation cannot collide across namespaces.
type Key struct {
	Namespace string
	ID        string
	Qualifier string
}

func (k Key) String() string {
	return k.Namespace + "\x1f" + k.ID + "\x1f" + k.Qualifier
}

// Prefix selects keys for invalidation. An empty ID matches every key in the
// namespace; a set ID matches every qualifier under (Namespace, ID).
type Prefix struct {
	Namespace string
	ID        string
}

func (p Prefix) Matches(k Key) bool {
	if p.Namespace != k.Namespace {
		return false
	}
	return p.ID == "" || p.ID == k.ID
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is safe for concurrent use. Concurrent GetOrFetch calls for the same
// key during an in-flight fetch share one underlying fetch; entries are
// dropped on expiry, invalidation or fetch failure.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[Key]entry[V]
	gen     map[Key]uint64
	group   singleflight.Group

	now func() time.Time
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[Key]entry[V]),
		gen:     make(map[Key]uint64),
		now:     time.Now,
	}
}

// GetOrFetch returns the live cached value for key, joins an in-flight fetch
// for key if one exists, or invokes fetch and caches the result for ttl.
// A failed fetch caches nothing, so the next caller retries cleanly. A fetch
// whose key is invalidated mid-flight completes normally but its result is
// not cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key Key, ttl time.Duration, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A caller that lost the race to an earlier flight may land here
		// after that flight already populated the entry.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		c.mu.Lock()
		startGen := c.gen[key]
		c.gen[key] = startGen // register in-flight key for invalidation
		c.mu.Unlock()

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[key] == startGen {
			c.entries[key] = entry[V]{value: v, expiresAt: c.now().Add(ttl)}
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *Cache[V]) lookup(key Key) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops every entry matching p, in-flight fetches included: a read
// issued immediately after Invalidate always re-fetches.
func (c *Cache[V]) Invalidate(p Prefix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.gen {
		if !p.Matches(k) {
			continue
		}
		c.gen[k]++
		delete(c.entries, k)
		c.group.Forget(k.String())
	}
}

// Len reports the number of live entries; expired entries still resident
// count until their next read.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
