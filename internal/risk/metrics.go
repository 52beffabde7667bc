package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Name:      "proposals_total",
		Help:      "Trade proposals by admission outcome.",
	}, []string{"outcome"})

	haltsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Name:      "halts_total",
		Help:      "Circuit breaker trips, manual halts included.",
	})

	equityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Name:      "equity",
		Help:      "Portfolio equity at the last valuation.",
	})

	reservedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Name:      "reserved_capital",
		Help:      "Capital held by outstanding reservations.",
	})

	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Name:      "pending_orders",
		Help:      "Orders awaiting a terminal broker update.",
	})
)

const (
	outcomeAdmitted = "admitted"
	outcomeRejected = "rejected"
	outcomeDropped  = "dropped"
)
