package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bulkRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invosafe_bulk_rows_total",
	Help: "Bulk reconciliation rows processed, labeled by operation and outcome",
}, []string{"operation", "result"})
