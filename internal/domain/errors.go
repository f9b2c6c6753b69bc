package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrQuantityInvalid = errors.New("quantity must be at least 1")
	ErrCouponInvalid   = errors.New("invalid coupon code")
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponExhausted = errors.New("coupon usage limit exceeded")
	ErrCouponExists    = errors.New("coupon code already exists")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrOrderNotPending = errors.New("order is not in pending state")
	ErrPaymentDeclined = errors.New("payment was declined")

	// ErrLockNotAvailable means a row lock could not be acquired within the
	// configured wait. The whole operation rolled back and may be retried.
	ErrLockNotAvailable = errors.New("row lock not available, retry")
)

// InsufficientStockError identifies which product could not cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InsufficientPaymentError reports a payment below the order total.
type InsufficientPaymentError struct {
	OrderID uuid.UUID
	Total   decimal.Decimal
	Offered decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment for order %s: total %s, offered %s",
		e.OrderID, e.Total, e.Offered)
}
