// Package metric provides Prometheus-based metrics for the TopStack client.
//
// A MetricsRegistry owns a dedicated prometheus.Registry (never the global
// default) holding the client's core metrics plus any collectors a caller
// registers. Components opt in by receiving the registry through an option;
// without one they record nothing.
//
// # Core Metrics
//
//   - topstack_client_requests_total{module,method,outcome}
//   - topstack_client_request_duration_seconds{module,method}
//   - topstack_subscription_messages_total{class,outcome}
//   - topstack_subscriptions_active
//   - topstack_bus_connected, topstack_bus_reconnects_total,
//     topstack_bus_messages_received_total, topstack_bus_circuit_breaker
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	c, err := client.New(cfg, client.WithMetrics(registry))
//
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server stopped", "error", err)
//	    }
//	}()
//
// Custom collectors go through the registrar methods, which reject duplicate
// names per component:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "my_total", Help: "..."})
//	err := registry.RegisterCounter("my-app", "my_total", counter)
package metric
