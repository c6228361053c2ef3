package worker

import (
	"errors"

	errs "github.com/c360/topstack/errors"
)

// Sentinel errors for pool operations
var (
	// ErrPoolNotStarted is returned by Submit before Start
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped is returned by Submit after Shutdown or Stop
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted is returned by a second Start
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is the shared queue-full sentinel so callers can match it
	// without importing this package.
	ErrQueueFull = errs.ErrQueueFull

	// ErrNilProcessor is the panic value for a nil processor
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout is returned when workers do not exit in time
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
