package snapshotter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cnsfacts_run_duration_seconds",
			Help:    "Time taken by a complete collection run",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	runTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnsfacts_run_total",
			Help: "Total number of collection runs",
		},
		[]string{"status"}, // success or error
	)

	runFacts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnsfacts_run_top_level_facts",
			Help: "Number of top-level fact namespaces in the last run",
		},
	)

	runFailedPlugins = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnsfacts_run_failed_plugins",
			Help: "Number of plugins that failed in the last run",
		},
	)
)
