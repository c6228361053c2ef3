// Package errors provides standardized error handling for the TopStack client.
//
// # Overview
//
// Every failure the client surfaces falls into one of three classes: Transient
// (temporary, retryable), Invalid (bad input or a rejected request, never retried)
// and Fatal (the owning component is gone, stop processing). The transport client
// never retries on its own; callers that want retries consult the class, usually
// through pkg/retry.
//
// # Typed Errors
//
// The typed errors carry the context a caller branches on:
//
//   - ConfigError: a construction parameter is missing or malformed (invalid)
//   - ConnectionError: the platform host could not be reached (transient)
//   - TimeoutError: a call exceeded its deadline (transient)
//   - DecodeError: a response body or bus payload is not well-formed (invalid)
//   - SchemaError: well-formed data has the wrong shape (invalid)
//   - TimestampFormatError: a timestamp is not a UTC date-time string (invalid)
//   - APIError: the platform answered with a non-success code (invalid, or
//     transient for 5xx and 429)
//   - SubscribeError: the bus refused a subscription (class of its cause)
//
// Branch on them with errors.As:
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) {
//	    log.Printf("platform said %s: %s", apiErr.Code, apiErr.Message)
//	}
//
// # Error Wrapping Pattern
//
// Wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// WrapTransient, WrapInvalid and WrapFatal apply the format and attach a class.
// Wrap applies the format and leaves the original class in the chain.
//
// # Classification
//
// Classify resolves the class in order: the outermost error in the chain that
// reports its own class, then the package sentinels, then common transient
// message patterns. Anything left over is Invalid so that nothing is retried on
// a guess.
package errors
