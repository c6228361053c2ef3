// Package health reports whether the pieces of a running client are usable.
//
// A Monitor holds named checks, typically one per bus connection and one per
// subscription engine, plus statuses pushed by callers. Report runs every check
// and folds the results into one Status. Any unhealthy part makes the report
// unhealthy; otherwise any degraded part, such as an engine with no active
// subscriptions, makes it degraded.
//
// Usage:
//
//	m := health.NewMonitor()
//	m.Register("bus", health.Connection("bus", natsClient.IsHealthy))
//	m.Register("engine", health.Subscriptions("engine", engine.Len, nil))
//	http.Handle("/health", health.Handler(m, "topstack"))
//
// Messages built from errors are sanitized: URLs, addresses, paths and
// credential-looking pairs are masked before they reach a health endpoint.
package health
