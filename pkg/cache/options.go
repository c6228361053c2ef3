package cache

import (
	"time"

	"github.com/c360/topstack/metric"
)

// EvictCallback is called with every entry removed by expiry or by the size
// bound, never for Delete or Clear. It runs without the cache lock held.
type EvictCallback[V any] func(key string, value V)

// Option configures a Cache
type Option[V any] func(*options[V])

type options[V any] struct {
	registry *metric.MetricsRegistry
	prefix   string
	onEvict  EvictCallback[V]
	now      func() time.Time
}

// WithMetrics exports the cache statistics to registry, labelled with prefix.
// A nil registry or empty prefix is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(o *options[V]) {
		if registry != nil && prefix != "" {
			o.registry = registry
			o.prefix = prefix
		}
	}
}

// WithEvictionCallback sets the eviction callback
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(o *options[V]) {
		o.onEvict = fn
	}
}

// withClock replaces time.Now in tests
func withClock[V any](now func() time.Time) Option[V] {
	return func(o *options[V]) {
		o.now = now
	}
}
