package plugin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pluginRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnsfacts_plugin_runs_total",
			Help: "Total number of plugin executions by final state",
		},
		[]string{"plugin", "state"}, // completed or failed
	)

	pluginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cnsfacts_plugin_duration_seconds",
			Help:    "Time taken by individual plugins, including required dependencies",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"plugin"},
	)
)
