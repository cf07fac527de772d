package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// ImportMetrics records certificate batch and legacy import outcomes.
type ImportMetrics struct {
	service string

	batchesTotal      prometheus.Counter
	batchDuration     prometheus.Histogram
	certificatesTotal *prometheus.CounterVec
	skippedFilesTotal *prometheus.CounterVec
	legacyRowsTotal   *prometheus.CounterVec
	commitFailures    prometheus.Counter
	breakerState      *prometheus.GaugeVec
}

func NewImportMetrics(service string, reg prometheus.Registerer) *ImportMetrics {
	labels := prometheus.Labels{"service": service}
	m := &ImportMetrics{
		service: service,
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "batches_total",
			Help:        "Committed certificate batches.",
			ConstLabels: labels,
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "batch_duration_seconds",
			Help:        "Certificate batch duration in seconds.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: labels,
		}),
		certificatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "certificates_total",
			Help:        "Certificates processed by outcome.",
			ConstLabels: labels,
		}, []string{"action", "vendor"}),
		skippedFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "skipped_files_total",
			Help:        "Uploaded files skipped by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		legacyRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "legacy_rows_total",
			Help:        "Legacy spreadsheet rows by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "import",
			Name:        "commit_failures_total",
			Help:        "Imports rolled back because the final commit failed.",
			ConstLabels: labels,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_open",
			Help:        "1 while the circuit breaker for an operation is not closed.",
			ConstLabels: labels,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.batchesTotal,
			m.batchDuration,
			m.certificatesTotal,
			m.skippedFilesTotal,
			m.legacyRowsTotal,
			m.commitFailures,
			m.breakerState,
		)
	}
	return m
}

func (m *ImportMetrics) ObserveBatch(result domain.BatchResult, seconds float64) {
	m.batchesTotal.Inc()
	m.batchDuration.Observe(seconds)
	for _, f := range result.Files {
		if f.Status == domain.FileSkipped {
			m.skippedFilesTotal.WithLabelValues(f.Reason).Inc()
		}
		for _, c := range f.Certificates {
			vendor := string(c.Certificate.Vendor)
			if vendor == "" {
				vendor = "unknown"
			}
			m.certificatesTotal.WithLabelValues(string(c.Action), vendor).Inc()
		}
	}
}

func (m *ImportMetrics) ObserveLegacyImport(result domain.LegacyImportResult) {
	m.legacyRowsTotal.WithLabelValues("imported").Add(float64(result.Imported))
	m.legacyRowsTotal.WithLabelValues("updated").Add(float64(result.Updated))
	m.legacyRowsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
}

func (m *ImportMetrics) ObserveCommitFailure() {
	m.commitFailures.Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ImportMetrics) ObserveBreakerState(operation, state string) {
	v := 0.0
	if state != "closed" {
		v = 1
	}
	m.breakerState.WithLabelValues(operation).Set(v)
}
