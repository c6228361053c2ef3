package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

const defaultQueueSize = 256

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Pool drains a bounded FIFO of T with a fixed number of workers.
// With a single worker, items are processed strictly in submission order.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error
	onError   func(T, error)

	queue   chan T
	done    chan struct{}
	running sync.WaitGroup

	mu    sync.Mutex
	state lifecycle

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64

	registry   *metric.MetricsRegistry
	metricName string
	metrics    *poolMetrics
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports pool metrics labelled pool=name. A name already
// exported by another pool leaves this one unexported.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.metricName = name
	}
}

// WithErrorHandler is called with every item whose processing returned an
// error or panicked. It runs on the worker goroutine.
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Pool[T]) {
		p.onError = fn
	}
}

// NewPool creates a pool. It panics if process is nil.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if process == nil {
		panic(ErrNilProcessor)
	}
	p := &Pool[T]{
		workers:   max(workers, 1),
		queueSize: queueSize,
		process:   process,
		done:      make(chan struct{}),
	}
	if p.queueSize <= 0 {
		p.queueSize = defaultQueueSize
	}
	p.queue = make(chan T, p.queueSize)

	for _, opt := range opts {
		opt(p)
	}
	if p.registry != nil && p.metricName != "" {
		if m, err := newPoolMetrics(p.registry, p.metricName); err == nil {
			p.metrics = m
		}
	}
	return p
}

// Start launches the workers. ctx bounds their lifetime and is handed to the
// processor.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case running:
		return ErrPoolAlreadyStarted
	case stopped:
		return ErrPoolStopped
	}

	p.running.Add(p.workers)
	for range p.workers {
		go p.work(ctx)
	}
	go func() {
		p.running.Wait()
		close(p.done)
	}()
	p.state = running
	return nil
}

// Submit enqueues work without blocking. A full queue drops the item and
// returns ErrQueueFull.
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case idle:
		return ErrPoolNotStarted
	case stopped:
		return ErrPoolStopped
	}

	select {
	case p.queue <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.depth.Set(float64(len(p.queue)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Shutdown closes the queue and returns immediately. Workers finish the item
// in hand, drain what is left, then exit. Safe to call from inside the
// processor and more than once.
func (p *Pool[T]) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stopped {
		return
	}
	if p.state == idle {
		// No workers will ever close done.
		close(p.done)
	}
	p.state = stopped
	close(p.queue)
}

// Done is closed once every worker has exited.
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every worker has exited or ctx ends.
func (p *Pool[T]) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}
}

// Stop shuts the pool down and waits up to timeout for the workers to exit.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Wait(ctx)
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Panics     int64 `json:"panics"`
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
		Panics:     p.panics.Load(),
	}
}

func (p *Pool[T]) work(ctx context.Context) {
	defer p.running.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.handle(ctx, item)
		}
	}
}

func (p *Pool[T]) handle(ctx context.Context, item T) {
	start := time.Now()
	err := p.safeProcess(ctx, item)

	p.processed.Add(1)
	if p.metrics != nil {
		p.metrics.depth.Set(float64(len(p.queue)))
		p.metrics.observe(err, time.Since(start).Seconds())
	}
	if err == nil {
		return
	}
	p.failed.Add(1)
	if p.onError != nil {
		p.onError(item, err)
	}
}

// safeProcess turns a processor panic into an error wrapping ErrHandlerPanic
// so one bad item never takes the worker down.
func (p *Pool[T]) safeProcess(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			err = fmt.Errorf("%w: %v", errs.ErrHandlerPanic, r)
		}
	}()
	return p.process(ctx, item)
}
