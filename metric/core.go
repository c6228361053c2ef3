package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "topstack"

// Outcome labels
const (
	OutcomeOK              = "ok"
	OutcomeAPIError        = "api_error"
	OutcomeTimeout         = "timeout"
	OutcomeConnectionError = "connection_error"
	OutcomeDecodeError     = "decode_error"
	OutcomeCached          = "cached"
	OutcomeDelivered       = "delivered"
	OutcomeDropped         = "dropped"
	OutcomePanic           = "panic"
)

// Metrics contains the client's core metrics
type Metrics struct {
	// Transport client
	ClientRequests        *prometheus.CounterVec
	ClientRequestDuration *prometheus.HistogramVec

	// Subscription engine
	SubscriptionMessages *prometheus.CounterVec
	SubscriptionsActive  prometheus.Gauge

	// Bus connection
	BusConnected        prometheus.Gauge
	BusReconnects       prometheus.Counter
	BusMessagesReceived prometheus.Counter
	BusCircuitBreaker   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ClientRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Platform API calls by module, method and outcome",
			},
			[]string{"module", "method", "outcome"},
		),

		ClientRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Platform API call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"module", "method"},
		),

		SubscriptionMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "messages_total",
				Help:      "Bus messages handled by subscriptions, by class and outcome",
			},
			[]string{"class", "outcome"},
		),

		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "active",
				Help:      "Subscriptions currently active",
			},
		),

		BusConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "connected",
				Help:      "Bus connection status (0=disconnected, 1=connected)",
			},
		),

		BusReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "reconnects_total",
				Help:      "Bus reconnections",
			},
		),

		BusMessagesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "messages_received_total",
				Help:      "Messages received from the bus across all subscriptions",
			},
		),

		BusCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "circuit_breaker",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ClientRequests,
		m.ClientRequestDuration,
		m.SubscriptionMessages,
		m.SubscriptionsActive,
		m.BusConnected,
		m.BusReconnects,
		m.BusMessagesReceived,
		m.BusCircuitBreaker,
	}
}

// RecordRequest records one platform API call.
func (m *Metrics) RecordRequest(module, method, outcome string, duration time.Duration) {
	m.ClientRequests.WithLabelValues(module, method, outcome).Inc()
	m.ClientRequestDuration.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordSubscriptionMessage records the fate of one bus message.
func (m *Metrics) RecordSubscriptionMessage(class, outcome string) {
	m.SubscriptionMessages.WithLabelValues(class, outcome).Inc()
}

// RecordBusStatus records connection status
func (m *Metrics) RecordBusStatus(connected bool) {
	if connected {
		m.BusConnected.Set(1)
	} else {
		m.BusConnected.Set(0)
	}
}

// RecordBusReconnect records a reconnection
func (m *Metrics) RecordBusReconnect() {
	m.BusReconnects.Inc()
}

// RecordBusMessage records one message received from the bus
func (m *Metrics) RecordBusMessage() {
	m.BusMessagesReceived.Inc()
}

// RecordCircuitBreakerState records circuit breaker state
func (m *Metrics) RecordCircuitBreakerState(state int) {
	m.BusCircuitBreaker.Set(float64(state))
}
