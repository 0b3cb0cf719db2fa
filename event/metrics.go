package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "event",
		Name:      "injected_total",
		Help:      "Events accepted by type.",
	}, []string{"type"})
	eventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "event",
		Name:      "rejected_total",
		Help:      "Events dropped at parse or init.",
	})
	eventsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trafficflow",
		Subsystem: "event",
		Name:      "active",
		Help:      "Events between start and release.",
	})
	obstaclesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "event",
		Name:      "obstacles_spawned_total",
		Help:      "Obstacle vehicles created by closure and incident events.",
	})
	obstaclesReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trafficflow",
		Subsystem: "event",
		Name:      "obstacles_released_total",
		Help:      "Obstacle vehicles killed at event release.",
	})
)
