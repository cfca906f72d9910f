package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.Entry("ERROR")
	m.Entry("ERROR")
	m.Suppressed(ReasonEmpty)
	m.SinkResult("file", ResultWritten)
	m.SinkResult("file", ResultDropped)
	m.Reconfigured(false)
	m.Archived()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesTotal.WithLabelValues("ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuppressedTotal.WithLabelValues(ReasonEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkEntriesTotal.WithLabelValues("file", ResultDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconfigureTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchivesTotal))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Entry("INFO")
		m.Suppressed(ReasonThreshold)
		m.SinkResult("console", ResultFailed)
		m.Reconfigured(true)
		m.Archived()
		m.ObserveBatch(0.1)
		m.SubscriberDelta(1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.Archived()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ArchivesTotal))
}
