// Package observability holds the prometheus instrumentation for the
// question pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the pipeline counters and histograms. A single instance is
// created at startup and shared by every workflow run.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runDuration   prometheus.Histogram
}

// New registers the pipeline metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telmi",
			Name:      "runs_total",
			Help:      "Completed question runs by route.",
		}, []string{"route"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telmi",
			Name:      "stage_failures_total",
			Help:      "Stage failures by error kind.",
		}, []string{"kind"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telmi",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telmi",
			Name:      "run_duration_seconds",
			Help:      "End-to-end question latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) ObserveRun(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(route).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(kind).Inc()
}
