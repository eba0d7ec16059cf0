package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_db_tx_seconds",
			Help:    "Duration of seat-affecting transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_reservations_created_total",
			Help: "Reservations created, by initial state",
		},
		[]string{"state"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_waitlist_claims_total",
			Help: "Waitlist claim attempts, by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_payment_reconcile_total",
			Help: "Payment reconciliations, by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_holds_expired_total",
			Help: "Holds force-expired by the sweeper",
		},
	)

	WaitlistNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_waitlist_notified_total",
			Help: "Waitlist availability notifications sent",
		},
	)

	SerializationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_serialization_retries_total",
			Help: "Transactions retried after serialization conflicts",
		},
	)
)
