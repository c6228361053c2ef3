package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": prefix}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "topstack",
			Subsystem:   "cache",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &cacheMetrics{
		hits:      counter("hits_total", "Lookups that found a live entry"),
		misses:    counter("misses_total", "Lookups that found nothing or an expired entry"),
		evictions: counter("evictions_total", "Entries dropped by expiry or the size bound"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "topstack",
			Subsystem:   "cache",
			Name:        "size",
			Help:        "Entries currently held",
			ConstLabels: labels,
		}),
	}

	if err := errors.Join(
		registry.RegisterCounter(prefix, "cache_hits", m.hits),
		registry.RegisterCounter(prefix, "cache_misses", m.misses),
		registry.RegisterCounter(prefix, "cache_evictions", m.evictions),
		registry.RegisterGauge(prefix, "cache_size", m.size),
	); err != nil {
		return nil, err
	}
	return m, nil
}
