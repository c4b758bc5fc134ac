// Package metrics exposes Prometheus instruments for ingestion and retention.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// Metrics holds all instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	IngestFiles     *prometheus.CounterVec   // hoard_ingest_files_total{outcome}
	IngestBytes     prometheus.Counter       // hoard_ingest_bytes_total
	QuotaRemaining  prometheus.Gauge         // hoard_quota_remaining
	LifecycleItems  *prometheus.CounterVec   // hoard_lifecycle_records_total{phase,outcome}
	RunsTotal       *prometheus.CounterVec   // hoard_runs_total{job,status}
	RunDuration     *prometheus.HistogramVec // hoard_run_duration_seconds{job}
	LastRunUnixTime *prometheus.GaugeVec     // hoard_last_run_timestamp_seconds{job}
}

// New registers a fresh instrument set on registry.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		IngestFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoard_ingest_files_total",
			Help: "Files seen by ingestion, by outcome",
		}, []string{"outcome"}),

		IngestBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "hoard_ingest_bytes_total",
			Help: "Bytes uploaded to the hot tier",
		}),

		QuotaRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hoard_quota_remaining",
			Help: "Small-file admissions left in the current quota window",
		}),

		LifecycleItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoard_lifecycle_records_total",
			Help: "Records handled by the retention job, by phase and outcome",
		}, []string{"phase", "outcome"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoard_runs_total",
			Help: "Completed job runs by job and status",
		}, []string{"job", "status"}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoard_run_duration_seconds",
			Help:    "Job run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),

		LastRunUnixTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hoard_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		}, []string{"job"}),
	}
}

// Init registers the process-wide instruments once; later calls return the
// same instance.
func Init(registry prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = New(registry)
	})
	return metricsInstance
}

// Get returns the process-wide instance, or nil before Init.
func Get() *Metrics {
	return metricsInstance
}

// RecordFile counts one ingested file outcome.
func (m *Metrics) RecordFile(outcome string) {
	if m == nil {
		return
	}
	m.IngestFiles.WithLabelValues(outcome).Inc()
}

// RecordUpload counts bytes written to the hot tier.
func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.IngestBytes.Add(float64(bytes))
}

// SetQuotaRemaining publishes the admission counter.
func (m *Metrics) SetQuotaRemaining(remaining int) {
	if m == nil {
		return
	}
	m.QuotaRemaining.Set(float64(remaining))
}

// RecordLifecycle counts n records for a retention phase outcome.
func (m *Metrics) RecordLifecycle(phase, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LifecycleItems.WithLabelValues(phase, outcome).Add(float64(n))
}

// RecordRun records one finished job run.
func (m *Metrics) RecordRun(job string, err error, took time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(job, status).Inc()
	m.RunDuration.WithLabelValues(job).Observe(took.Seconds())
	m.LastRunUnixTime.WithLabelValues(job).SetToCurrentTime()
}
