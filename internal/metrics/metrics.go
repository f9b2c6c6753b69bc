package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type LedgerMetrics struct {
	OrdersPlaced      prometheus.Counter
	OrdersCancelled   prometheus.Counter
	PaymentsConfirmed prometheus.Counter
	CouponRedemptions *prometheus.CounterVec
	StockConflicts    prometheus.Counter
	LockTimeouts      prometheus.Counter
	OpDuration        *prometheus.HistogramVec
}

func NewLedgerMetrics() *LedgerMetrics {
	m := &LedgerMetrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "orders_placed_total",
			Help:      "Orders successfully placed.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "orders_cancelled_total",
			Help:      "Orders moved to the cancelled state.",
		}),
		PaymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "payments_confirmed_total",
			Help:      "Payments captured and recorded.",
		}),
		CouponRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption attempts by result.",
		}, []string{"result"}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "stock_conflicts_total",
			Help:      "Order placements rejected for insufficient stock.",
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tzmart",
			Name:      "lock_timeouts_total",
			Help:      "Operations aborted because a row lock was not acquired in time.",
		}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tzmart",
			Name:      "operation_duration_ms",
			Help:      "Core operation latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op"}),
	}
	prometheus.MustRegister(
		m.OrdersPlaced, m.OrdersCancelled, m.PaymentsConfirmed,
		m.CouponRedemptions, m.StockConflicts, m.LockTimeouts, m.OpDuration,
	)
	return m
}

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
