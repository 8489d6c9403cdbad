package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lookup counters on a private registry, so several App instances
// (and tests) never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	Lookups          *prometheus.CounterVec
	LookupLatency    *prometheus.HistogramVec
	UpstreamFailures *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "infolookup_lookups_total",
			Help: "Completed lookups by domain and outcome",
		}, []string{"domain", "outcome"}),

		LookupLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "infolookup_lookup_duration_seconds",
			Help:    "Duration of one lookup including the upstream call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"domain"}),

		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "infolookup_upstream_failures_total",
			Help: "Upstream calls that did not yield trustworthy JSON, by reason",
		}, []string{"reason"}),
	}
}

// ObserveLookup records one finished lookup.
func (m *Metrics) ObserveLookup(domain, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(domain, outcome).Inc()
	m.LookupLatency.WithLabelValues(domain).Observe(d.Seconds())
}

func (m *Metrics) IncUpstreamFailure(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.UpstreamFailures.WithLabelValues(reason).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
