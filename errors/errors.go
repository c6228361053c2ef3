// Package errors provides standardized error handling patterns for the TopStack client.
// It includes error classification, standard error variables, the typed errors surfaced
// by the transport client and subscription engine, and helper functions for consistent
// error wrapping and classification.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Connection and networking errors
	ErrNoConnection       = errors.New("no connection available")
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSubscriptionFailed = errors.New("subscription failed")

	// Data processing errors
	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")
	ErrSchemaInvalid = errors.New("data does not match expected shape")
	ErrBadTimestamp  = errors.New("timestamp does not match UTC date-time profile")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrAPIRejected    = errors.New("request rejected by platform")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Subscription lifecycle errors
	ErrQueueFull     = errors.New("subscription queue full")
	ErrHandlerPanic  = errors.New("subscription handler panicked")
	ErrEngineClosed  = errors.New("subscription engine closed")
	ErrUnknownHandle = errors.New("unknown subscription handle")

	// Circuit breaker and retry errors
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// classifier is implemented by typed errors that carry their own class.
type classifier interface {
	ErrorClass() ErrorClass
}

// ClassifiedError attaches a class and its origin to an error.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error { return ce.Err }

// ErrorClass returns the attached class
func (ce *ClassifiedError) ErrorClass() ErrorClass { return ce.Class }

// Sentinels that classify an otherwise unclassified chain.
var (
	transientSentinels = []error{
		ErrConnectionTimeout, ErrConnectionLost, ErrNotConnected, ErrCircuitOpen,
		context.DeadlineExceeded,
	}
	fatalSentinels   = []error{ErrEngineClosed, ErrConnectionClosed}
	invalidSentinels = []error{
		ErrInvalidData, ErrParsingFailed, ErrSchemaInvalid, ErrBadTimestamp,
		ErrInvalidConfig, ErrMissingConfig, ErrInvalidRequest,
	}
)

// Message fragments of foreign errors, such as net.OpError, worth retrying.
var transientFragments = []string{
	"timeout", "connection refused", "connection reset", "temporary", "unavailable",
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// classOf finds the outermost error in the chain that carries a class.
func classOf(err error) (ErrorClass, bool) {
	var c classifier
	if errors.As(err, &c) {
		return c.ErrorClass(), true
	}
	return 0, false
}

// classify resolves err's class: a carried class wins, then known sentinels,
// then transient-looking messages. Anything else is invalid so nothing is
// retried on a guess.
func classify(err error) ErrorClass {
	if class, ok := classOf(err); ok {
		return class
	}
	switch {
	case matchesAny(err, transientSentinels):
		return ErrorTransient
	case matchesAny(err, fatalSentinels):
		return ErrorFatal
	case matchesAny(err, invalidSentinels):
		return ErrorInvalid
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return ErrorTransient
		}
	}
	return ErrorInvalid
}

// IsTransient reports whether err may succeed if retried
func IsTransient(err error) bool {
	return err != nil && classify(err) == ErrorTransient
}

// IsFatal reports whether err should stop processing
func IsFatal(err error) bool {
	return err != nil && classify(err) == ErrorFatal
}

// IsInvalid reports whether err stems from bad input, configuration or data
func IsInvalid(err error) bool {
	return err != nil && classify(err) == ErrorInvalid
}

// Classify returns err's class. nil is reported as transient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	return classify(err)
}

// Wrap adds context as "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps err as transient
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps err as fatal
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps err as invalid
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, err, component, method, action)
}

// Re-exports of the standard library helpers so callers can import a single errors package.
var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Join   = errors.Join
	Unwrap = errors.Unwrap
)
