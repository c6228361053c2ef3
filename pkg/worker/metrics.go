package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	errs "github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

type poolMetrics struct {
	depth     prometheus.Gauge
	submitted prometheus.Counter
	processed prometheus.Counter
	failed    prometheus.Counter
	dropped   prometheus.Counter
	duration  *prometheus.HistogramVec
}

func newPoolMetrics(registry *metric.MetricsRegistry, name string) (*poolMetrics, error) {
	labels := prometheus.Labels{"pool": name}
	counter := func(metricName, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "topstack",
			Subsystem:   "worker",
			Name:        metricName,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &poolMetrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "topstack",
			Subsystem:   "worker",
			Name:        "queue_depth",
			Help:        "Items waiting in the queue",
			ConstLabels: labels,
		}),
		submitted: counter("submitted_total", "Items accepted into the queue"),
		processed: counter("processed_total", "Items handed to the processor"),
		failed:    counter("failed_total", "Items whose processor returned an error or panicked"),
		dropped:   counter("dropped_total", "Items refused because the queue was full"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "topstack",
			Subsystem:   "worker",
			Name:        "processing_seconds",
			Help:        "Processor run time per item",
			Buckets:     []float64{.001, .005, .01, .05, .1, .5, 1},
			ConstLabels: labels,
		}, []string{"status"}),
	}

	const component = "worker_pool"
	if err := errs.Join(
		registry.RegisterGauge(component, name+"_queue_depth", m.depth),
		registry.RegisterCounter(component, name+"_submitted", m.submitted),
		registry.RegisterCounter(component, name+"_processed", m.processed),
		registry.RegisterCounter(component, name+"_failed", m.failed),
		registry.RegisterCounter(component, name+"_dropped", m.dropped),
		registry.RegisterHistogramVec(component, name+"_processing", m.duration),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *poolMetrics) observe(err error, seconds float64) {
	m.processed.Inc()
	status := "ok"
	if err != nil {
		m.failed.Inc()
		status = "error"
	}
	m.duration.WithLabelValues(status).Observe(seconds)
}
