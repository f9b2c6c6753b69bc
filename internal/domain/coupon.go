package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon codes are unique case-insensitively. UsedCount only ever grows and
// is bumped strictly under a row lock, so it can never pass UsageLimit.
type Coupon struct {
	ID              int64
	Code            string
	DiscountPercent decimal.Decimal
	DiscountFixed   decimal.Decimal
	UsageLimit      int
	UsedCount       int
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Eligibility of the coupon at the given instant. The zero error means the
// coupon may still be redeemed.
func (c *Coupon) Eligible(now time.Time) error {
	if now.After(c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.UsedCount >= c.UsageLimit {
		return ErrCouponExhausted
	}
	return nil
}

// DiscountFor computes the discount against a candidate total: percent of the
// total first, then the fixed amount, clamped so the adjusted total never
// goes below zero.
func (c *Coupon) DiscountFor(total decimal.Decimal) decimal.Decimal {
	discount := decimal.Zero
	if c.DiscountPercent.IsPositive() {
		discount = total.Mul(c.DiscountPercent).Div(decimal.NewFromInt(100))
	}
	if c.DiscountFixed.IsPositive() {
		discount = discount.Add(c.DiscountFixed)
	}
	if discount.GreaterThan(total) {
		discount = total
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount
}
