package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportJobMetrics records outcomes for spreadsheet import jobs.
type ImportJobMetrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewImportJobMetrics registers the import job metrics on the provided registerer.
func NewImportJobMetrics(reg prometheus.Registerer) *ImportJobMetrics {
	if reg == nil {
		return &ImportJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_job_duration_seconds",
		Help:    "Duration of import jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_job_rows_total",
		Help: "Rows handled by import jobs, by outcome.",
	}, []string{"job", "outcome"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_job_success",
		Help: "Successful import job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_job_failure",
		Help: "Failed import job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, rows, success, failure)
	return &ImportJobMetrics{
		duration: duration,
		rows:     rows,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (m *ImportJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// AddRows adds to the row counter for the named job and outcome.
func (m *ImportJobMetrics) AddRows(job, outcome string, count int) {
	if m == nil || m.rows == nil || count <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Add(float64(count))
}

// IncSuccess increments the success counter for the named job.
func (m *ImportJobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *ImportJobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
