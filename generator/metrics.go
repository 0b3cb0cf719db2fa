package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spawnAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "spawn_attempts_total",
		Help:      "Input region fires (headway elapsed).",
	}, []string{"input"})
	spawnSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "spawned_total",
		Help:      "Vehicles handed to the element manager.",
	}, []string{"input"})
	spawnGated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "spawn_gated_total",
		Help:      "Fires denied by the input safety gate.",
	}, []string{"input"})
	erasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "erased_total",
		Help:      "Vehicles killed inside exit areas.",
	})
	reroutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "rerouted_total",
		Help:      "Vehicles assigned a route at a route group start line.",
	})
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trafficflow",
		Subsystem: "generator",
		Name:      "phase_duration_seconds",
		Help:      "Wall time of the generate/erase/reroute phases.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"phase"})
)
