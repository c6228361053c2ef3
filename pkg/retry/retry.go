package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/c360/topstack/errors"
)

const (
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
	maxMultiplier       = 1000
)

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Total attempts; values below 1 run fn once
	InitialDelay time.Duration // Wait after the first failure
	MaxDelay     time.Duration // Ceiling for every wait
	Multiplier   float64       // Growth factor between waits
	AddJitter    bool          // Stretch each wait by up to a quarter

	// Retryable decides whether a failure is worth another attempt.
	// errors.IsTransient when nil.
	Retryable func(error) bool
	// OnRetry is called before each wait with the attempt that failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig suits a single API call: three attempts within a second or so.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: defaultInitialDelay, MaxDelay: defaultMaxDelay,
		Multiplier: defaultMultiplier, AddJitter: true}
}

// Quick retries often with short waits, e.g. while a broker comes up.
func Quick() Config {
	return Config{MaxAttempts: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second,
		Multiplier: 1.5, AddJitter: true}
}

// Persistent keeps trying for roughly a few minutes.
func Persistent() Config {
	return Config{MaxAttempts: 30, InitialDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second,
		Multiplier: defaultMultiplier, AddJitter: true}
}

func (c Config) normalize() (Config, error) {
	switch {
	case c.InitialDelay < 0:
		return c, &errors.ConfigError{Field: "InitialDelay", Reason: "cannot be negative"}
	case c.MaxDelay < 0:
		return c, &errors.ConfigError{Field: "MaxDelay", Reason: "cannot be negative"}
	case c.Multiplier < 0:
		return c, &errors.ConfigError{Field: "Multiplier", Reason: "cannot be negative"}
	}

	c.MaxAttempts = max(c.MaxAttempts, 1)
	c.Multiplier = min(c.Multiplier, maxMultiplier)
	if c.Multiplier == 0 {
		c.Multiplier = defaultMultiplier
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		return c, &errors.ConfigError{Field: "MaxDelay", Reason: "must be >= InitialDelay"}
	}
	if c.Retryable == nil {
		c.Retryable = errors.IsTransient
	}
	return c, nil
}

// backoff yields the wait before each retry.
type backoff struct {
	cfg   Config
	delay time.Duration
}

func (b *backoff) next() time.Duration {
	wait := b.delay
	if b.cfg.AddJitter && wait >= 4 {
		wait += rand.N(wait / 4)
	}
	grown := time.Duration(float64(b.delay) * b.cfg.Multiplier)
	b.delay = min(grown, b.cfg.MaxDelay)
	return wait
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts or ctx ends. The final error wraps the last failure.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}
	b := &backoff{cfg: cfg, delay: cfg.InitialDelay}

	var last error
	for attempt := 1; ; attempt++ {
		if last = fn(ctx); last == nil {
			return nil
		}
		if !cfg.Retryable(last) {
			return last
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, errors.Join(ctx.Err(), last))
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, last)
		}

		wait := b.next()
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, last, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, errors.Join(err, last))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DoWithResult is Do for functions that return a value
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
