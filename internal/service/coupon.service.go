package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tzmart/internal/config"
	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/metrics"
	"tzmart/internal/repo"
)

type CouponRedemption struct {
	Code          string          `json:"code"`
	Discount      decimal.Decimal `json:"discount"`
	AdjustedTotal decimal.Decimal `json:"adjusted_total"`
}

// CouponService validates and redeems coupons. Redemption is the only path
// that increments used_count, and it always does so under the coupon row
// lock inside one transaction, so a coupon with a usage limit of N can never
// be redeemed more than N times no matter how requests interleave.
type CouponService interface {
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string, total decimal.Decimal) (*CouponRedemption, error)
	// Redeem runs inside the caller's transaction. The pricing preview path
	// must never call this.
	Redeem(ctx context.Context, tx *sql.Tx, code string, total decimal.Decimal) (*CouponRedemption, error)
	Preview(ctx context.Context, code string, total decimal.Decimal) (*CouponRedemption, error)
	CreateCoupon(ctx context.Context, coupon *domain.Coupon) error
}

type couponService struct {
	db         *sql.DB
	couponRepo repo.CouponRepo
	userRepo   repo.UserRepo
	cfg        config.Config
	metrics    *metrics.LedgerMetrics
	now        nowFunc
}

func NewCouponService(
	db *sql.DB,
	couponRepo repo.CouponRepo,
	userRepo repo.UserRepo,
	cfg config.Config,
	m *metrics.LedgerMetrics,
) CouponService {
	return &couponService{
		db:         db,
		couponRepo: couponRepo,
		userRepo:   userRepo,
		cfg:        cfg,
		metrics:    m,
		now:        defaultNow,
	}
}

func (s *couponService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string, total decimal.Decimal) (*CouponRedemption, error) {
	user, err := s.userRepo.FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	tx, err := database.BeginTx(ctx, s.db, s.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	redemption, err := s.Redeem(ctx, tx, code, total)
	if err != nil {
		s.countRedemption(err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.countRedemption(nil)
	return redemption, nil
}

func (s *couponService) Redeem(ctx context.Context, tx *sql.Tx, code string, total decimal.Decimal) (*CouponRedemption, error) {
	// Lock first, then re-read eligibility under the lock. Checking before
	// locking would let two contenders both pass the usage limit.
	coupon, err := s.couponRepo.FindByCodeForUpdate(ctx, tx, code)
	if err != nil {
		return nil, database.MapLockError(err)
	}
	if coupon == nil {
		return nil, domain.ErrCouponInvalid
	}
	if err := coupon.Eligible(s.now()); err != nil {
		return nil, err
	}

	discount := coupon.DiscountFor(total)
	if err := s.couponRepo.IncrementUsage(ctx, tx, coupon.ID); err != nil {
		return nil, err
	}

	return &CouponRedemption{
		Code:          coupon.Code,
		Discount:      discount,
		AdjustedTotal: total.Sub(discount),
	}, nil
}

func (s *couponService) Preview(ctx context.Context, code string, total decimal.Decimal) (*CouponRedemption, error) {
	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponInvalid
	}
	if err := coupon.Eligible(s.now()); err != nil {
		return nil, err
	}

	discount := coupon.DiscountFor(total)
	return &CouponRedemption{
		Code:          coupon.Code,
		Discount:      discount,
		AdjustedTotal: total.Sub(discount),
	}, nil
}

func (s *couponService) CreateCoupon(ctx context.Context, coupon *domain.Coupon) error {
	if coupon.UsageLimit < 1 {
		coupon.UsageLimit = 1
	}
	return s.couponRepo.Create(ctx, coupon)
}

func (s *couponService) countRedemption(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.CouponRedemptions.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrCouponExhausted):
		s.metrics.CouponRedemptions.WithLabelValues("exhausted").Inc()
	case errors.Is(err, domain.ErrCouponExpired):
		s.metrics.CouponRedemptions.WithLabelValues("expired").Inc()
	case errors.Is(err, domain.ErrCouponInvalid):
		s.metrics.CouponRedemptions.WithLabelValues("invalid").Inc()
	case errors.Is(err, domain.ErrLockNotAvailable):
		s.metrics.LockTimeouts.Inc()
		s.metrics.CouponRedemptions.WithLabelValues("error").Inc()
	default:
		s.metrics.CouponRedemptions.WithLabelValues("error").Inc()
	}
}
