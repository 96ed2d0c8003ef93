// Package metrics exposes the Prometheus counters of the reservation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Allocations counts allocation requests by outcome.
	Allocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foyer",
		Name:      "allocations_total",
		Help:      "Reservation allocation requests by outcome.",
	}, []string{"outcome"})

	// Cancellations counts cancellation requests by outcome.
	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foyer",
		Name:      "cancellations_total",
		Help:      "Reservation cancellation requests by outcome.",
	}, []string{"outcome"})

	// Retries counts engine retries by reason (conflict, duplicate_id).
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foyer",
		Name:      "reservation_retries_total",
		Help:      "Reservation writes retried after a conflict or duplicate identifier.",
	}, []string{"reason"})
)
