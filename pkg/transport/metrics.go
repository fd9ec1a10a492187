package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnsfacts_transport_probe_total",
			Help: "Total number of metadata reachability probes",
		},
		[]string{"result"}, // reachable or unreachable
	)

	probeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cnsfacts_transport_probe_duration_seconds",
			Help:    "Time taken by metadata reachability probes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnsfacts_transport_requests_total",
			Help: "Total number of metadata requests by status code",
		},
		[]string{"code"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cnsfacts_transport_request_duration_seconds",
			Help:    "Time taken by metadata requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)
