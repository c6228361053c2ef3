// Package worker provides a generic bounded queue drained by a fixed number of
// goroutines.
//
// The subscription engine gives every subscription its own Pool with a single
// worker, which is what makes per-subscription delivery strictly ordered while
// one slow handler cannot stall another subscription.
//
// Submit never blocks. When the queue is full the item is dropped, counted, and
// ErrQueueFull is returned so the caller can report the loss:
//
//	pool := worker.NewPool(1, 256, deliver,
//	    worker.WithErrorHandler(func(m Message, err error) { report(m, err) }),
//	)
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	if err := pool.Submit(msg); errors.Is(err, worker.ErrQueueFull) {
//	    report(msg, err)
//	}
//
// A panic in the processor is recovered and reported through the error handler
// as an error wrapping ErrHandlerPanic; the worker keeps running.
//
// Shutdown closes the queue without waiting and may be called from inside the
// processor. Stop and Wait block until the workers have exited. Done exposes the
// exit as a channel.
//
// Statistics are always tracked with atomics. Prometheus metrics are opt-in
// through WithMetricsRegistry.
package worker
