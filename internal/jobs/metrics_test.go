package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("cleanup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("cleanup").End(boom), boom)
	m.AddItems("cleanup", "idempotency_keys", 3)
	m.AddItems("cleanup", "idempotency_keys", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cleanup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cleanup", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("cleanup")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("cleanup", "idempotency_keys")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddItems("x", "y", 1)
}
