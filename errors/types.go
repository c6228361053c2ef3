package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigError reports a bad construction parameter. It is never retryable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ErrorClass implements classification
func (e *ConfigError) ErrorClass() ErrorClass { return ErrorInvalid }

// ConnectionError reports that the remote host could not be reached.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

// Unwrap returns the underlying transport error
func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrorClass implements classification
func (e *ConnectionError) ErrorClass() ErrorClass { return ErrorTransient }

// TimeoutError reports that a call did not complete within its deadline.
type TimeoutError struct {
	Operation string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying deadline error
func (e *TimeoutError) Unwrap() error { return e.Err }

// Is reports TimeoutError as ErrConnectionTimeout
func (e *TimeoutError) Is(target error) bool { return target == ErrConnectionTimeout }

// ErrorClass implements classification
func (e *TimeoutError) ErrorClass() ErrorClass { return ErrorTransient }

// DecodeError reports malformed structured data. Source is the request path or bus
// subject the data arrived on; Field names the offending field when known.
type DecodeError struct {
	Source string
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %q: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

// Unwrap returns the parse failure
func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports DecodeError as ErrParsingFailed
func (e *DecodeError) Is(target error) bool { return target == ErrParsingFailed }

// ErrorClass implements classification
func (e *DecodeError) ErrorClass() ErrorClass { return ErrorInvalid }

// SchemaError reports well-formed data whose shape does not match the expected type.
type SchemaError struct {
	Source   string
	Field    string
	Expected string
	Got      string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema mismatch in %s", e.Source)
	if e.Field != "" {
		fmt.Fprintf(&b, " at %q", e.Field)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, ": expected %s", e.Expected)
	}
	if e.Got != "" {
		fmt.Fprintf(&b, ", got %s", e.Got)
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrSchemaInvalid
func (e *SchemaError) Unwrap() error { return ErrSchemaInvalid }

// ErrorClass implements classification
func (e *SchemaError) ErrorClass() ErrorClass { return ErrorInvalid }

// TimestampFormatError reports a timestamp that is not a UTC date-time string.
type TimestampFormatError struct {
	Source string
	Field  string
	Value  string
	Err    error
}

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("decode %s: field %q: bad timestamp %q: %v", e.Source, e.Field, e.Value, e.Err)
}

// Unwrap lets errors.Is match ErrBadTimestamp
func (e *TimestampFormatError) Unwrap() []error { return []error{ErrBadTimestamp, e.Err} }

// ErrorClass implements classification
func (e *TimestampFormatError) ErrorClass() ErrorClass { return ErrorInvalid }

// APIError is a call the platform rejected. Code and Message are the envelope's
// values, verbatim. HTTPStatus is the transport status code when available.
//
// Callers branch on the code:
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == "401" { ... }
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
	Path       string
}

func (e *APIError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("api %s: code %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api: code %s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrAPIRejected
func (e *APIError) Unwrap() error { return ErrAPIRejected }

// ErrorClass classifies server-side failures and throttling as transient,
// every other rejection as invalid.
func (e *APIError) ErrorClass() ErrorClass {
	code, err := strconv.Atoi(e.Code)
	if err != nil {
		return ErrorInvalid
	}
	if code >= 500 || code == 429 {
		return ErrorTransient
	}
	return ErrorInvalid
}

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// SubscribeError reports that a subscription could not be established.
type SubscribeError struct {
	Subject string
	Err     error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Subject, e.Err)
}

// Unwrap returns both the sentinel and the cause
func (e *SubscribeError) Unwrap() []error { return []error{ErrSubscriptionFailed, e.Err} }

// ErrorClass inherits the class of the cause
func (e *SubscribeError) ErrorClass() ErrorClass {
	if e.Err == nil {
		return ErrorInvalid
	}
	if class, ok := classOf(e.Err); ok {
		return class
	}
	return Classify(e.Err)
}
