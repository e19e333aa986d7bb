package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	smsIngestedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "sms_ingested_total",
			Help:      "Total number of SMS notifications accepted by the ingestion gateway.",
		},
		[]string{"source", "method"},
	)

	ingestRejectedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "sms_ingest_rejected_total",
			Help:      "Total number of SMS notifications rejected before persistence.",
		},
		[]string{"source", "reason"}, // reason: "auth", "validation", "persistence"
	)

	matchOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "match_outcomes_total",
			Help:      "Reconciliation attempts by entry direction and outcome.",
		},
		[]string{"direction", "outcome"}, // direction: "sms", "payment"
	)

	paymentTransitionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "payment_transitions_total",
			Help:      "Payment transitions out of pending, including lost races.",
		},
		[]string{"to_status", "result"}, // result: "applied", "conflict", "error"
	)

	paymentsSubmittedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "payments_submitted_total",
			Help:      "Customer payment submissions by method and result.",
		},
		[]string{"method", "result"}, // result: "created", "duplicate", "invalid", "error"
	)

	sweepDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payment_service",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of batch reconciliation sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sweepItemsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Name:      "sweep_items_total",
			Help:      "Pending payments visited by the sweeper, by result.",
		},
		[]string{"result"},
	)
)
