package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "checkout",
	Name:      "total",
	Help:      "Checkouts by payment category and outcome.",
}, []string{"category", "outcome"})

var CheckoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "possettle",
	Subsystem: "checkout",
	Name:      "duration_seconds",
	Help:      "Checkout latency from validation to receipt.",
	Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
}, []string{"category"})

var InvoiceRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "invoice",
	Name:      "conflict_retries_total",
	Help:      "Invoice number collisions that triggered a retry.",
})

var InvoiceFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "invoice",
	Name:      "fallbacks_total",
	Help:      "Invoice numbers issued from the timestamp fallback, by cause.",
}, []string{"cause"})

var InventoryShortfalls = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "inventory",
	Name:      "shortfall_units_total",
	Help:      "Units sold that could not be deducted because stock had drifted.",
})

var InventoryAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "inventory",
	Name:      "adjustments_total",
	Help:      "Applied inventory adjustments by type.",
}, []string{"type"})

var LoyaltyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "loyalty",
	Name:      "accrual_failures_total",
	Help:      "Loyalty accruals skipped after a settled sale.",
})

var LoyaltyPointsEarned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "loyalty",
	Name:      "points_earned_total",
	Help:      "Loyalty points awarded.",
})

var BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "checkout",
	Name:      "best_effort_failures_total",
	Help:      "Post-settlement steps that failed without failing the sale.",
}, []string{"step"})

var DrawerDiscrepancies = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "possettle",
	Subsystem: "drawer",
	Name:      "discrepancies_total",
	Help:      "Drawer closes and reconciliations by discrepancy classification.",
}, []string{"stage", "classification"})

func Handler() http.Handler {
	return promhttp.Handler()
}
