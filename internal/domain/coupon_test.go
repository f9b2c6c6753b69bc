package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := &Coupon{UsageLimit: 2, UsedCount: 0, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, c.Eligible(now))

	c.UsedCount = 2
	assert.ErrorIs(t, c.Eligible(now), ErrCouponExhausted)

	c.UsedCount = 0
	assert.ErrorIs(t, c.Eligible(now.Add(2*time.Hour)), ErrCouponExpired)

	// Expiry wins even when also exhausted.
	c.UsedCount = 2
	assert.ErrorIs(t, c.Eligible(now.Add(2*time.Hour)), ErrCouponExpired)
}

func TestCouponDiscountFor(t *testing.T) {
	total := decimal.NewFromInt(10000)

	percent := &Coupon{DiscountPercent: decimal.NewFromInt(10)}
	assert.True(t, percent.DiscountFor(total).Equal(decimal.NewFromInt(1000)))

	fixed := &Coupon{DiscountFixed: decimal.NewFromInt(500)}
	assert.True(t, fixed.DiscountFor(total).Equal(decimal.NewFromInt(500)))

	// Percent applies first, then the fixed amount stacks on top.
	both := &Coupon{DiscountPercent: decimal.NewFromInt(10), DiscountFixed: decimal.NewFromInt(500)}
	assert.True(t, both.DiscountFor(total).Equal(decimal.NewFromInt(1500)))
}

func TestCouponDiscountClampedToTotal(t *testing.T) {
	c := &Coupon{DiscountFixed: decimal.NewFromInt(5000)}

	small := decimal.NewFromInt(3000)
	got := c.DiscountFor(small)
	assert.True(t, got.Equal(small), "discount must not exceed the total, got %s", got)
	assert.False(t, small.Sub(got).IsNegative())

	zero := c.DiscountFor(decimal.Zero)
	assert.True(t, zero.IsZero())
}
