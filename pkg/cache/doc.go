// Package cache provides a generic, thread-safe cache bounded by size and by
// entry age.
//
// Entries expire ttl after they were stored and are evicted least recently
// used first once the cache holds maxSize entries. Expired entries are dropped
// lazily on access or in bulk by Purge; no background goroutine runs.
//
//	c, err := cache.New[*envelope.Envelope](512, time.Minute,
//	    cache.WithMetrics[*envelope.Envelope](registry, "api_responses"))
//	if err != nil {
//	    return err
//	}
//	c.Set(key, env)
//	if env, ok := c.Get(key); ok { ... }
//
// Statistics are always collected; Prometheus export is optional.
package cache
