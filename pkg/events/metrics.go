package events

import "github.com/prometheus/client_golang/prometheus"

// eventsDroppedTotal counts events dropped from a subscriber's queue due to
// overflow, across the lifetime of the process.
var eventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "docintel",
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Total events dropped from a subscriber queue due to overflow.",
})

func init() {
	prometheus.MustRegister(eventsDroppedTotal)
}
