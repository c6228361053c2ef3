// Package natsclient is the NATS implementation of the platform event bus.
//
// A Client owns one connection to the broker. Every subscription the
// subscription engine makes shares it, and Client.Done closes when the
// connection is gone for good, which the engine treats as the end of every
// live subscription.
//
// # Connection Lifecycle
//
// Status moves Disconnected → Connecting → Connected, then between Connected
// and Reconnecting while the nats library retries. When reconnects are
// exhausted or Close is called the status returns to Disconnected and Done
// closes.
//
// # Circuit Breaker
//
// Failed Connect calls are counted. After the threshold (default 5) the
// circuit opens and Connect fails fast with ErrCircuitOpen. After the current
// backoff the circuit goes half-open and the next Connect may try again; each
// round while open doubles the backoff up to WithMaxBackoff.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithCircuitBreakerThreshold(3),
//	    natsclient.WithMaxBackoff(30*time.Second),
//	)
//
// # Subscriptions
//
// Subscribe returns only after the server has acknowledged the interest, so a
// message published right after it returns is delivered. Unsubscribe is
// idempotent and waits for an in-flight handler call:
//
//	sub, err := client.Subscribe(ctx, "iot.project_001.data.*.*",
//	    func(ctx context.Context, msg bus.Message) {
//	        fmt.Println(msg.Subject, len(msg.Data))
//	    })
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe(ctx)
//
// Handlers run on the connection's dispatch goroutine for their subscription.
// They must return quickly; the subscription engine only enqueues from here.
//
// # Observability
//
// The client is silent unless given a *slog.Logger with WithLogger. WithMetrics
// reports connection status, reconnects, messages received and circuit state
// on the shared registry.
//
// # Testing
//
// NewTestClient starts a nats server in a container with testcontainers-go and
// returns a connected Client. Tests that need no broker use testutil.MockBus.
package natsclient
