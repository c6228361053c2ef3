// Package retry runs platform calls again after transient failures.
//
// The transport client never retries on its own: whether a call is safe to
// repeat depends on the endpoint. Reads such as api.FindLast can be wrapped
// freely; control writes such as api.SetValue should only be wrapped when the
// caller knows the write is idempotent.
//
// By default only errors classified transient by package errors are retried
// (connection failures, timeouts, 5xx and 429 platform codes). Invalid and
// fatal errors return after the first attempt.
//
//	last, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func(ctx context.Context) (api.PointValue, error) {
//	    return api.FindLast.Do(ctx, c, ref)
//	})
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//   - Quick(): 10 attempts, 50ms-1s delay (waiting for a broker at startup)
//   - Persistent(): 30 attempts, 200ms-10s delay
//
// Every wait honors ctx; a cancelled context ends the loop with ctx.Err() wrapped
// around the last failure.
package retry
