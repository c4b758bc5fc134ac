package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFile("uploaded")
		m.RecordUpload(10)
		m.SetQuotaRemaining(3)
		m.RecordLifecycle("promote", "ok", 2)
		m.RecordRun("ingest", nil, time.Second)
	})
}

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFile("uploaded")
	m.RecordFile("uploaded")
	m.RecordFile("deferred")
	m.RecordUpload(500)
	m.SetQuotaRemaining(4)
	m.RecordLifecycle("archive", "ok", 3)
	m.RecordLifecycle("archive", "ok", 0)
	m.RecordRun("retain", errors.New("boom"), 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestFiles.WithLabelValues("uploaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestFiles.WithLabelValues("deferred")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.IngestBytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QuotaRemaining))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LifecycleItems.WithLabelValues("archive", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("retain", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "hoard_run_duration_seconds")
}

func TestInitIsSingleton(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := Init(reg)
	second := Init(prometheus.NewRegistry())
	assert.Same(t, first, second)
	assert.Same(t, first, Get())
}
