package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tzmart/internal/domain"
)

type CouponRepo interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// FindByCodeForUpdate takes the row lock that makes check-then-increment
	// on used_count safe against concurrent redemptions.
	FindByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*domain.Coupon, error)
	IncrementUsage(ctx context.Context, tx *sql.Tx, id int64) error
	Create(ctx context.Context, coupon *domain.Coupon) error
}

type couponRepo struct {
	db *sql.DB
}

func NewCouponRepo(db *sql.DB) CouponRepo {
	return &couponRepo{db: db}
}

const couponColumns = "id, code, discount_percent, discount_fixed, usage_limit, used_count, expires_at, created_at, updated_at"

func scanCoupon(row *sql.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.DiscountFixed,
		&c.UsageLimit, &c.UsedCount, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return scanCoupon(r.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE lower(code) = lower($1)", code))
}

func (r *couponRepo) FindByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*domain.Coupon, error) {
	return scanCoupon(tx.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE lower(code) = lower($1) FOR UPDATE", code))
}

func (r *couponRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE coupons SET used_count = used_count + 1, updated_at = $1 WHERE id = $2",
		time.Now(), id)
	return err
}

func (r *couponRepo) Create(ctx context.Context, coupon *domain.Coupon) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO coupons (code, discount_percent, discount_fixed, usage_limit, used_count, expires_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id`,
		coupon.Code, coupon.DiscountPercent, coupon.DiscountFixed, coupon.UsageLimit, coupon.ExpiresAt).
		Scan(&coupon.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrCouponExists
	}
	return err
}
