// Package rescache implements the bounded result cache shared by all
// coordinator activity: LRU capacity eviction, per-entry TTL treated as
// a miss on read, tag-based bulk invalidation, a schema version stamp on
// every entry, and hit/miss statistics.
//
// Expiry is lazy. An expired entry is removed by the Get that touches it;
// there is no background sweep.
package rescache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// SchemaVersion stamps every stored entry. Bumping it makes previously
// cached values read as misses, so a change in the stored value shape is
// never confused with legitimately cached data.
const SchemaVersion = 1

// Defaults applied when no option overrides them.
const (
	DefaultCapacity = 50
	DefaultTTL      = 10 * time.Minute
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Sets          uint64  `json:"sets"`
	Evictions     uint64  `json:"evictions"`
	Invalidations uint64  `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
	Size          int     `json:"size"`
}

type entry[V any] struct {
	value     V
	tags      []string
	createdAt time.Time
	ttl       time.Duration
	version   int
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

type settings struct {
	capacity   int
	defaultTTL time.Duration
	version    int
	clock      func() time.Time
}

// Option configures a Cache.
type Option func(*settings)

// WithCapacity bounds the number of entries before LRU eviction kicks in.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithDefaultTTL sets the TTL applied when Set receives no override.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithVersion overrides the schema version stamp. Used by tests to
// simulate stale-version entries.
func WithVersion(v int) Option {
	return func(s *settings) { s.version = v }
}

// WithClock injects a time source. Used by tests to advance TTLs without
// sleeping.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Cache is a bounded, tag-indexed, TTL-aware LRU cache. Safe for
// concurrent use.
type Cache[V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, *entry[V]]
	byTag map[string]map[string]struct{}

	defaultTTL time.Duration
	version    int
	clock      func() time.Time

	hits          uint64
	misses        uint64
	sets          uint64
	evictions     uint64
	invalidations uint64
}

// New creates a cache with the given options.
func New[V any](opts ...Option) *Cache[V] {
	s := settings{
		capacity:   DefaultCapacity,
		defaultTTL: DefaultTTL,
		version:    SchemaVersion,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	c := &Cache[V]{
		byTag:      make(map[string]map[string]struct{}),
		defaultTTL: s.defaultTTL,
		version:    s.version,
		clock:      s.clock,
	}
	// The eviction callback only maintains the tag index; counters are
	// attributed at the call sites so capacity evictions, invalidations
	// and expiries stay distinguishable.
	lru, err := simplelru.NewLRU(s.capacity, func(key string, e *entry[V]) {
		c.dropTagsLocked(key, e)
	})
	if err != nil {
		// Capacity is validated by WithCapacity; only a non-positive size
		// errors, which cannot happen here.
		panic(err)
	}
	c.lru = lru
	return c
}

// Get returns the cached value for key. Expired or stale-version entries
// are removed and reported as misses. Updates recency order and counters.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if e.version != c.version || e.expired(c.clock()) {
		c.lru.Remove(key)
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Has reports whether key holds a live entry. Does not update recency or
// hit/miss counters, and leaves expired entries for Get to collect.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	return e.version == c.version && !e.expired(c.clock())
}

// Set stores value under key with the given tags. A zero ttlOverride
// applies the cache default. Last write wins: at most one value is held
// per key.
func (c *Cache[V]) Set(key string, value V, tags []string, ttlOverride time.Duration) {
	ttl := ttlOverride
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacing an existing key does not go through the eviction callback,
	// so retire its tag registrations by hand.
	if old, ok := c.lru.Peek(key); ok {
		c.dropTagsLocked(key, old)
	}

	e := &entry[V]{
		value:     value,
		tags:      append([]string(nil), tags...),
		createdAt: c.clock(),
		ttl:       ttl,
		version:   c.version,
	}
	if evicted := c.lru.Add(key, e); evicted {
		c.evictions++
	}
	for _, tag := range e.tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	c.sets++
}

// InvalidateByTag removes every entry whose tag set contains tag and
// returns the number removed.
func (c *Cache[V]) InvalidateByTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byTag[tag]
	if !ok {
		return 0
	}
	removed := 0
	for key := range keys {
		if c.lru.Remove(key) {
			removed++
		}
	}
	c.invalidations += uint64(removed)
	return removed
}

// Clear removes all entries. Counters survive; size drops to zero.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.byTag = make(map[string]map[string]struct{})
}

// Len returns the current entry count, including not-yet-collected
// expired entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Sets:          c.sets,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
		Size:          c.lru.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// dropTagsLocked removes key from the tag index. Called with c.mu held
// (directly or from inside an LRU mutation).
func (c *Cache[V]) dropTagsLocked(key string, e *entry[V]) {
	for _, tag := range e.tags {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}
