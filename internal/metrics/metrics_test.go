package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLookup(t *testing.T) {
	m := New()
	m.ObserveLookup("phone", "found", 120*time.Millisecond)
	m.ObserveLookup("phone", "found", 80*time.Millisecond)
	m.ObserveLookup("vehicle", "not_found", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("phone", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("vehicle", "not_found")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.LookupLatency))
}

func TestIncUpstreamFailureIgnoresEmptyReason(t *testing.T) {
	m := New()
	m.IncUpstreamFailure("")
	m.IncUpstreamFailure("empty_body")

	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamFailures.WithLabelValues("empty_body")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLookup("phone", "found", time.Second)
	m.IncUpstreamFailure("timeout")
	require.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveLookup("phone", "invalid_format", 0)

	path := filepath.Join(t.TempDir(), "prom", "infolookup.prom")
	require.NoError(t, m.WriteTextfile(path))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(blob), `infolookup_lookups_total{domain="phone",outcome="invalid_format"} 1`))
}
