// Package cache provides a TTL and capacity-bounded in-memory cache with
// per-key computation coalescing. It memoizes resolution outcomes and preload
// metadata so repeated requests do not hammer upstream providers.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Defaults for cache behavior.
const (
	DefaultCapacity      = 100
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// ComputeFunc produces a value for a key. The cacheable flag lets the caller
// veto insertion after the fact: a result whose key was banned or purged while
// the computation was in flight completes normally but is not cached.
type ComputeFunc[V any] func(ctx context.Context) (value V, cacheable bool, err error)

// Config holds cache tuning parameters. Zero values use defaults.
type Config struct {
	Capacity      int
	TTL           time.Duration
	SweepInterval time.Duration
}

type entry[V any] struct {
	value          V
	insertedAt     time.Time
	lastAccessedAt time.Time
}

// Cache is a mutex-protected key/value store with TTL expiry and LRU
// eviction. Concurrent GetOrCompute calls for the same key run the compute
// function exactly once; all callers receive the same outcome.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[V]
	capacity int
	ttl      time.Duration

	group singleflight.Group

	sweepTicker *time.Ticker
	sweepStop   chan struct{}
	stopOnce    sync.Once

	// now is replaceable in tests to exercise TTL behavior without sleeping.
	now func() time.Time
}

// New creates a cache and starts its periodic expiry sweep.
func New[V any](cfg Config) *Cache[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	c := &Cache[V]{
		entries:  make(map[string]*entry[V]),
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      time.Now,
	}

	c.sweepTicker = time.NewTicker(cfg.SweepInterval)
	c.sweepStop = make(chan struct{})
	go c.sweepLoop()

	return c
}

// Get returns the cached value for key if present and fresh. An expired entry
// is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	e.lastAccessedAt = c.now()
	return e.value, true
}

// GetOrCompute returns the cached value for key, computing and caching it on
// a miss. Concurrent callers for the same key share a single computation.
// Errors are not cached: a failed computation is retried on the next call.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, fn ComputeFunc[V]) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check after winning the flight: another caller may have
		// populated the entry between our miss and this callback.
		if value, ok := c.Get(key); ok {
			return value, nil
		}

		value, cacheable, err := fn(ctx)
		if err != nil {
			return value, err
		}
		if cacheable {
			c.set(key, value)
		}
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Invalidate removes the entry for key, reporting whether one existed. Any
// in-flight computation for the key is detached so the next call recomputes.
func (c *Cache[V]) Invalidate(key string) bool {
	c.group.Forget(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Purge removes every entry matched by the predicate and returns the count.
// It runs synchronously under the cache lock: once Purge returns, no matched
// entry can be served.
func (c *Cache[V]) Purge(pred func(key string, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for key, e := range c.entries {
		if pred(key, e.value) {
			delete(c.entries, key)
			c.group.Forget(key)
			purged++
		}
	}
	return purged
}

// Len returns the number of live entries, counting expired-but-unswept ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop halts the background sweep. The cache remains usable afterwards.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.sweepTicker.Stop()
		close(c.sweepStop)
	})
}

func (c *Cache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &entry[V]{value: value, insertedAt: now, lastAccessedAt: now}

	if len(c.entries) > c.capacity {
		c.evictOldestLocked(key)
	}
}

// evictOldestLocked removes the least recently used entry other than the one
// just inserted. Caller must hold c.mu.
func (c *Cache[V]) evictOldestLocked(justInserted string) {
	var oldestKey string
	var oldestTime time.Time
	for key, e := range c.entries {
		if key == justInserted {
			continue
		}
		if oldestKey == "" || e.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

func (c *Cache[V]) sweepLoop() {
	for {
		select {
		case <-c.sweepTicker.C:
			c.sweepExpired()
		case <-c.sweepStop:
			return
		}
	}
}

func (c *Cache[V]) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}
