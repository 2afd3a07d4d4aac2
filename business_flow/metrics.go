package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	disbursementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_disbursements_total",
		Help: "Total number of payment disbursements by outcome",
	}, []string{"outcome"})

	commissionCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_credited_minor_units_total",
		Help: "Total commission credited to agent wallets, in minor units",
	})

	commissionTierSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_tier_skips_total",
		Help: "Total skipped tiers during disbursement by reason",
	}, []string{"reason"})

	withdrawalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawal_transitions_total",
		Help: "Total withdrawal state transitions by target status",
	}, []string{"status"})

	withdrawalPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "withdrawal_paid_minor_units_total",
		Help: "Total amount debited for paid withdrawals, in minor units",
	})
)

const (
	disbursementOutcomeCompleted = "completed"
	disbursementOutcomeReplayed  = "replayed"
	disbursementOutcomeFailed    = "failed"
)
