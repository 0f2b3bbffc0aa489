// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TriggerInvocations counts handler runs by route and outcome
	// (ok, aborted, error).
	TriggerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tally",
		Name:      "trigger_invocations_total",
		Help:      "Trigger handler invocations by route and outcome.",
	}, []string{"route", "outcome"})

	TriggerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tally",
		Name:      "trigger_duration_seconds",
		Help:      "Trigger handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// RecurrenceRenewals counts recurring expenses processed by outcome
	// (renewed, failed).
	RecurrenceRenewals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tally",
		Name:      "recurrence_renewals_total",
		Help:      "Recurring expenses renewed or failed.",
	}, []string{"outcome"})

	BalanceRatchets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tally",
		Name:      "balance_ratchets_total",
		Help:      "Times a user's max negative balance was lowered.",
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tally",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and outcome.",
	}, []string{"job", "outcome"})
)
