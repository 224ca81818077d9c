// Package cache provides the detail-view caches behind port.Cache:
// an in-memory TTL cache and a Redis-backed one.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds an InMemory cache built without WithMaxEntries.
const DefaultMaxEntries = 10_000

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// Option configures an InMemory cache.
type Option func(*settings)

type settings struct {
	maxEntries int
	now        func() time.Time
}

// WithMaxEntries caps the number of records kept; the least recently used
// record is evicted first. n <= 0 keeps the default.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// InMemory is a bounded LRU cache whose entries expire after a TTL.
// Safe for concurrent use.
type InMemory[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	now   func() time.Time
	order *list.List // front = most recently used
	index map[string]*list.Element
	stop  chan struct{}
	once  sync.Once
}

// New creates an in-memory cache with the given TTL and starts its janitor.
func New[T any](ttl time.Duration, opts ...Option) *InMemory[T] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s := settings{maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	c := &InMemory[T]{
		ttl:   ttl,
		max:   s.maxEntries,
		now:   s.now,
		order: list.New(),
		index: make(map[string]*list.Element),
		stop:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the value for key. Expired entries are dropped on read.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.now().After(e.expiresAt) {
		c.removeLocked(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[T])
		e.value, e.expiresAt = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, expiresAt: expires})
	for c.order.Len() > c.max {
		c.removeLocked(c.order.Back())
	}
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemory[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the janitor. The cache stays usable.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemory[T]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[T])
	delete(c.index, e.key)
}

// purgeExpired drops every expired entry.
func (c *InMemory[T]) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[T]).expiresAt) {
			c.removeLocked(el)
		}
		el = prev
	}
}

func (c *InMemory[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}
