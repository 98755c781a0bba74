package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	creditsPurchasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invosafe_credits_purchased_total",
		Help: "Credits added to lender balances by purchases",
	})

	creditsUsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invosafe_credits_used_total",
		Help: "Credits consumed by metered API calls",
	})

	externalChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invosafe_external_checks_total",
		Help: "Metered invoice checks, labeled by outcome",
	}, []string{"result"})
)
