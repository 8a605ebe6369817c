package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//committedTransactions prometheus metric.
	committedTransactions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of transactions committed to the local ledger",
			Name:      "committed_transactions_total",
			Namespace: "horseregistry",
			Subsystem: "ledger",
		},
	)
	//rejectedTransactions prometheus metric.
	rejectedTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of transactions rejected before commit, by reason",
			Name:      "rejected_transactions_total",
			Namespace: "horseregistry",
			Subsystem: "ledger",
		},
		[]string{"reason"},
	)
	//ledgerHeight prometheus metric.
	ledgerHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Sequence number of the last committed transaction",
			Name:      "height",
			Namespace: "horseregistry",
			Subsystem: "ledger",
		},
	)
)

func init() {
	prometheus.MustRegister(
		committedTransactions,
		rejectedTransactions,
		ledgerHeight,
	)
}

func updateHeightMetric(h uint64) {
	ledgerHeight.Set(float64(h))
}
