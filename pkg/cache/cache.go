package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/c360/topstack/errors"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a size- and age-bounded LRU cache keyed by string.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // front is most recently used
	items   map[string]*list.Element

	stats   Statistics
	metrics *cacheMetrics
	onEvict EvictCallback[V]
	now     func() time.Time
}

// New creates a cache holding at most maxSize entries, each for at most ttl.
// It fails with *errors.ConfigError when either bound is not positive.
func New[V any](maxSize int, ttl time.Duration, opts ...Option[V]) (*Cache[V], error) {
	if maxSize <= 0 {
		return nil, &errors.ConfigError{Field: "MaxSize", Reason: "must be positive"}
	}
	if ttl <= 0 {
		return nil, &errors.ConfigError{Field: "TTL", Reason: "must be positive"}
	}

	o := &options[V]{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	c := &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		onEvict: o.onEvict,
		now:     o.now,
	}
	if o.registry != nil {
		m, err := newCacheMetrics(o.registry, o.prefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
		c.metrics = m
	}
	return c, nil
}

// Get returns the live value stored under key and marks it recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.miss()
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.mu.Unlock()
		c.evicted(e)
		c.miss()
		return zero, false
	}
	c.order.MoveToFront(el)
	c.mu.Unlock()

	c.stats.hits.Add(1)
	if c.metrics != nil {
		c.metrics.hits.Inc()
	}
	return e.value, true
}

// Set stores value under key with a fresh ttl. It reports whether key was
// new. An empty key is rejected.
func (c *Cache[V]) Set(key string, value V) (bool, error) {
	if key == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidData, "cache", "Set", "key cannot be empty")
	}

	expiresAt := c.now().Add(c.ttl)
	var dropped []*entry[V]

	c.mu.Lock()
	created := true
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		created = false
	} else {
		c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
		for c.order.Len() > c.maxSize {
			oldest := c.order.Back()
			c.removeElement(oldest)
			dropped = append(dropped, oldest.Value.(*entry[V]))
		}
		c.updateSize(c.order.Len())
	}
	c.mu.Unlock()

	c.stats.sets.Add(1)
	for _, e := range dropped {
		c.evicted(e)
	}
	return created, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	c.mu.Unlock()

	if ok {
		c.stats.deletes.Add(1)
	}
	return ok
}

// Clear removes every entry without calling the eviction callback.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.mu.Unlock()
	c.updateSize(0)
}

// Purge drops every expired entry and returns how many it dropped.
func (c *Cache[V]) Purge() int {
	now := c.now()
	var dropped []*entry[V]

	c.mu.Lock()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[V]); !now.Before(e.expiresAt) {
			c.removeElement(el)
			dropped = append(dropped, e)
		}
		el = prev
	}
	c.mu.Unlock()

	for _, e := range dropped {
		c.evicted(e)
	}
	return len(dropped)
}

// Len returns the number of entries held, expired ones included until they
// are dropped.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the held keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns the live statistics
func (c *Cache[V]) Stats() *Statistics {
	return &c.stats
}

// Summary returns a snapshot of the statistics and size
func (c *Cache[V]) Summary() Summary {
	return Summary{
		Hits:      c.stats.Hits(),
		Misses:    c.stats.Misses(),
		Sets:      c.stats.Sets(),
		Deletes:   c.stats.Deletes(),
		Evictions: c.stats.Evictions(),
		HitRatio:  c.stats.HitRatio(),
		Size:      c.Len(),
	}
}

// removeElement must be called with c.mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
	c.updateSize(c.order.Len())
}

func (c *Cache[V]) evicted(e *entry[V]) {
	c.stats.evictions.Add(1)
	if c.metrics != nil {
		c.metrics.evictions.Inc()
	}
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

func (c *Cache[V]) miss() {
	c.stats.misses.Add(1)
	if c.metrics != nil {
		c.metrics.misses.Inc()
	}
}

func (c *Cache[V]) updateSize(n int) {
	if c.metrics != nil {
		c.metrics.size.Set(float64(n))
	}
}
