package deposits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	depositsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_deposits_initiated_total",
		Help: "Number of deposit checkout sessions opened.",
	})

	depositsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_deposits_completed_total",
		Help: "Number of deposits credited to a wallet.",
	})

	depositsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_deposits_failed_total",
		Help: "Number of deposit completions rejected, by reason.",
	}, []string{"reason"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_webhook_events_total",
		Help: "Number of provider webhook events processed, by type.",
	}, []string{"type"})
)
