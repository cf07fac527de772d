package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	sweepTotal    *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	sweepInFlight prometheus.Gauge
	toolsChanged  *prometheus.CounterVec
	eventLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "status_sweep_total",
			Help:      "Status refresh sweeps by trigger and status.",
		},
		[]string{"service", "trigger", "status"},
	)
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "status_sweep_duration_seconds",
			Help:      "Status refresh sweep duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	sweepInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "status_sweep_in_flight",
			Help:      "Number of running status sweeps.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	toolsChanged := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tool_status_changes_total",
			Help:      "Tools whose date-driven status changed during a sweep.",
		},
		[]string{"service"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between batch commit and the sweep it triggered.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(sweepTotal, sweepDuration, sweepInFlight, toolsChanged, eventLag)

	return &WorkerMetrics{
		registry:      registry,
		sweepTotal:    sweepTotal,
		sweepDuration: sweepDuration,
		sweepInFlight: sweepInFlight,
		toolsChanged:  toolsChanged,
		eventLag:      eventLag,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSweep() {
	m.sweepInFlight.Inc()
}

func (m *WorkerMetrics) FinishSweep(service, trigger string, changed int, duration time.Duration, err error) {
	m.sweepInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.sweepTotal.WithLabelValues(service, trigger, status).Inc()
	m.sweepDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if changed > 0 {
		m.toolsChanged.WithLabelValues(service).Add(float64(changed))
	}
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
