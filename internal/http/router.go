package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tzmart/internal/database"
	"tzmart/internal/metrics"
)

// NewRouter wires the core operations behind a gin engine. The HTTP layer is
// a thin adapter: all business rules live in the services.
func NewRouter(h *Handlers, health database.Service, m *metrics.LedgerMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	if m != nil {
		r.Use(timed(m))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, health.Health())
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/cart/items", h.addToCart)
	r.DELETE("/cart", h.emptyCart)
	r.GET("/cart/total", h.previewCartTotal)

	r.POST("/orders", h.placeOrder)
	r.GET("/orders", h.orderHistory)
	r.POST("/orders/:id/cancel", h.cancelOrder)
	r.POST("/orders/:id/payment", h.confirmPayment)

	r.POST("/coupons", h.createCoupon)
	r.POST("/coupons/apply", h.applyCoupon)

	return r
}

// timed records per-route latency in the operation histogram.
func timed(m *metrics.LedgerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			return // unmatched path
		}
		m.OpDuration.WithLabelValues(c.Request.Method + " " + route).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}
