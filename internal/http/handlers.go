package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tzmart/internal/domain"
	"tzmart/internal/service"
)

type Handlers struct {
	Pricing  service.PricingService
	Cart     service.CartService
	Coupons  service.CouponService
	Orders   service.OrderService
	Payments service.PaymentService
}

type addToCartRequest struct {
	UserID    uuid.UUID `json:"user_id" binding:"required"`
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required"`
}

func (h *Handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	line, err := h.Cart.AddToCart(c.Request.Context(), req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handlers) emptyCart(c *gin.Context) {
	userID, ok := parseUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	removed, err := h.Cart.EmptyCart(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handlers) previewCartTotal(c *gin.Context) {
	userID, ok := parseUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	result, err := h.Pricing.PreviewCartTotal(c.Request.Context(), userID, c.Query("coupon"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type placeOrderRequest struct {
	UserID          uuid.UUID `json:"user_id" binding:"required"`
	ShippingAddress string    `json:"shipping_address"`
}

func (h *Handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	summary, err := h.Orders.PlaceOrder(c.Request.Context(), req.UserID, req.ShippingAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

type cancelOrderRequest struct {
	ActorID uuid.UUID `json:"actor_id" binding:"required"`
}

func (h *Handlers) cancelOrder(c *gin.Context) {
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	summary, err := h.Orders.CancelOrder(c.Request.Context(), orderID, req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type confirmPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"method"`
}

func (h *Handlers) confirmPayment(c *gin.Context) {
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	summary, err := h.Payments.ConfirmPayment(c.Request.Context(), orderID, req.Amount, req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handlers) orderHistory(c *gin.Context) {
	userID, ok := parseUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	orders, err := h.Orders.OrderHistory(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type applyCouponRequest struct {
	UserID uuid.UUID       `json:"user_id" binding:"required"`
	Code   string          `json:"code" binding:"required"`
	Total  decimal.Decimal `json:"total" binding:"required"`
}

func (h *Handlers) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	redemption, err := h.Coupons.ApplyCoupon(c.Request.Context(), req.UserID, req.Code, req.Total)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, redemption)
}

type createCouponRequest struct {
	Code            string          `json:"code" binding:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountFixed   decimal.Decimal `json:"discount_fixed"`
	UsageLimit      int             `json:"usage_limit"`
	ExpiresAt       time.Time       `json:"expires_at" binding:"required"`
}

func (h *Handlers) createCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid request", Details: err.Error()})
		return
	}
	coupon := &domain.Coupon{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		DiscountFixed:   req.DiscountFixed,
		UsageLimit:      req.UsageLimit,
		ExpiresAt:       req.ExpiresAt,
	}
	if err := h.Coupons.CreateCoupon(c.Request.Context(), coupon); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func parseUUIDQuery(c *gin.Context, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query(key))
	if err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid " + key})
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDParam(c *gin.Context, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		c.JSON(http.StatusBadRequest, jsonError{Error: "invalid " + key})
		return uuid.Nil, false
	}
	return id, true
}
