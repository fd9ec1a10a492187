package cloud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var probeOutcomeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cnsfacts_cloud_probe_outcomes_total",
		Help: "Cloud provider probe outcomes",
	},
	[]string{"provider", "outcome"}, // detected, absent, failed
)

const (
	outcomeDetected = "detected"
	outcomeAbsent   = "absent"
	outcomeFailed   = "failed"
)
