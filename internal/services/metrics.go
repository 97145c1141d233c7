// Package services implements the purchase-tracking core. This file exposes
// Prometheus instrumentation for purchase activity, mirroring the label
// discipline of the HTTP metrics: bounded label sets only (queue state,
// finish outcome, catalog result), never product identifiers.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// txProcessed counts delivered transactions by queue state, including
	// re-deliveries of the same transaction.
	txProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buykit_transactions_processed_total",
			Help: "Total transaction deliveries processed, by queue state.",
		},
		[]string{"state"},
	)

	// txFinished counts acknowledgements sent back to the payment queue.
	txFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buykit_transactions_finished_total",
			Help: "Total transactions acknowledged (finished), by outcome.",
		},
		[]string{"outcome"},
	)

	// txParked counts settled transactions left unacknowledged for queue
	// redelivery (hook unavailable, hook refused, malformed restore).
	txParked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buykit_transactions_parked_total",
			Help: "Total transactions left pending for redelivery, by reason.",
		},
		[]string{"reason"},
	)

	// purchasesRecorded counts ledger writes (idempotent re-records included).
	purchasesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buykit_purchases_recorded_total",
			Help: "Total purchases recorded into the receipts ledger.",
		},
	)

	// catalogLoads counts catalog refresh completions by result. Superseded
	// means a newer load started before this one finished and its response
	// was discarded.
	catalogLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buykit_catalog_loads_total",
			Help: "Total catalog lookups completed, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(txProcessed, txFinished, txParked, purchasesRecorded, catalogLoads)
}
