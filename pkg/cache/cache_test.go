package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, size int, ttl time.Duration, opts ...Option[string]) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New(size, ttl, append(opts, withClock[string](clock.Now))...)
	require.NoError(t, err)
	return c, clock
}

func TestNew_InvalidBounds(t *testing.T) {
	_, err := New[string](0, time.Minute)
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MaxSize", cfgErr.Field)

	_, err = New[string](10, 0)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "TTL", cfgErr.Field)
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	created, err := c.Set("device_001", "online")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("device_001", "offline")
	require.NoError(t, err)
	assert.False(t, created)

	v, ok := c.Get("device_001")
	assert.True(t, ok)
	assert.Equal(t, "offline", v)

	_, ok = c.Get("device_002")
	assert.False(t, ok)

	_, err = c.Set("", "x")
	assert.True(t, errors.IsInvalid(err))

	s := c.Summary()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(2), s.Sets)
	assert.Equal(t, 0.5, s.HitRatio)
	assert.Equal(t, 1, s.Size)
}

func TestCache_Expiry(t *testing.T) {
	var evicted []string
	c, clock := newTestCache(t, 10, time.Minute,
		WithEvictionCallback(func(key, _ string) { evicted = append(evicted, key) }))

	_, _ = c.Set("a", "1")
	clock.Advance(30 * time.Second)
	_, _ = c.Set("b", "2")

	clock.Advance(30 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok, "entry expires exactly at ttl")
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, []string{"a"}, evicted)

	// Set refreshes the age.
	clock.Advance(20 * time.Second)
	_, _ = c.Set("b", "3")
	clock.Advance(50 * time.Second)
	_, ok = c.Get("b")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestCache_LRUEviction(t *testing.T) {
	var evicted []string
	c, _ := newTestCache(t, 2, time.Hour,
		WithEvictionCallback(func(key, _ string) { evicted = append(evicted, key) }))

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	_, _ = c.Get("a")
	_, _ = c.Set("c", "3")

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
	assert.Equal(t, 2, c.Len())
}

func TestCache_DeleteClear(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, int64(1), c.Stats().Deletes())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions())
}

func TestCache_Purge(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	for i := 0; i < 3; i++ {
		_, _ = c.Set(fmt.Sprintf("old_%d", i), "x")
	}
	clock.Advance(45 * time.Second)
	_, _ = c.Set("fresh", "y")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 3, c.Purge())
	assert.Equal(t, []string{"fresh"}, c.Keys())
	assert.Equal(t, 0, c.Purge())
}

func TestCache_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, _ := newTestCache(t, 1, time.Minute, WithMetrics[string](registry, "api_responses"))
	require.NotNil(t, c.metrics)

	_, _ = c.Set("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	_, _ = c.Set("b", "2")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.size))

	_, err := New[string](1, time.Minute, WithMetrics[string](registry, "api_responses"))
	assert.True(t, errors.IsTransient(err))
}

func TestCache_Concurrent(t *testing.T) {
	c, err := New[int](64, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				_, _ = c.Set(key, i)
				_, _ = c.Get(key)
				if i%17 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
