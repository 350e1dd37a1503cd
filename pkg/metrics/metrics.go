package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	paperlane = "paperlane"

	// Document metrics
	dispatchTotal       = "dispatch_total"
	pollTotal           = "poll_total"
	engineAnomalyTotal  = "engine_anomaly_total"
	reconcileTicksTotal = "reconcile_ticks_total"

	// Account metrics
	paymentDecisionsTotal   = "payment_decisions_total"
	accountTransitionsTotal = "account_transitions_total"

	// Labels
	outcomeLabel  = "outcome"
	stateLabel    = "state"
	decisionLabel = "decision"
	fromLabel     = "from"
	toLabel       = "to"
)

/**
* Metrics definition
**/
var dispatchTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      dispatchTotal,
		Help:      "number of document submissions partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var pollTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      pollTotal,
		Help:      "number of engine status polls partitioned by the engine state observed",
	},
	[]string{stateLabel},
)

var engineAnomalyTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      engineAnomalyTotal,
		Help:      "number of engine states that could not be mapped to a document status",
	},
	[]string{stateLabel},
)

var reconcileTicksTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      reconcileTicksTotal,
		Help:      "number of reconciler passes partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var paymentDecisionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      paymentDecisionsTotal,
		Help:      "number of payment proof decisions",
	},
	[]string{decisionLabel},
)

var accountTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: paperlane,
		Name:      accountTransitionsTotal,
		Help:      "number of account status transitions",
	},
	[]string{fromLabel, toLabel},
)

func IncreaseDispatchTotalMetric(outcome string) {
	dispatchTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreasePollTotalMetric(state string) {
	pollTotalMetric.With(prometheus.Labels{stateLabel: state}).Inc()
}

func IncreaseEngineAnomalyMetric(state string) {
	engineAnomalyTotalMetric.With(prometheus.Labels{stateLabel: state}).Inc()
}

func IncreaseReconcileTicksMetric(outcome string) {
	reconcileTicksTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreasePaymentDecisionMetric(decision string) {
	paymentDecisionsTotalMetric.With(prometheus.Labels{decisionLabel: decision}).Inc()
}

func IncreaseAccountTransitionMetric(from, to string) {
	accountTransitionsTotalMetric.With(prometheus.Labels{fromLabel: from, toLabel: to}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(dispatchTotalMetric)
	prometheus.MustRegister(pollTotalMetric)
	prometheus.MustRegister(engineAnomalyTotalMetric)
	prometheus.MustRegister(reconcileTicksTotalMetric)
	prometheus.MustRegister(paymentDecisionsTotalMetric)
	prometheus.MustRegister(accountTransitionsTotalMetric)
}
