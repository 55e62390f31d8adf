package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentrelay"

var (
	eventsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "built_total",
			Help:      "Total status events built by operation",
		},
		[]string{"operation"},
	)

	mappingMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "mapping_misses_total",
			Help:      "Source values without a configured mapping, sent as unknown",
		},
		[]string{"field"},
	)

	buildFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "build_failures_total",
			Help:      "Status events that could not be built. Nothing is sent for these.",
		},
	)
)

func recordEventBuilt(operation string) {
	eventsBuilt.WithLabelValues(operation).Inc()
}

func recordMappingMiss(field string) {
	mappingMisses.WithLabelValues(field).Inc()
}

func recordBuildFailure() {
	buildFailures.Inc()
}
