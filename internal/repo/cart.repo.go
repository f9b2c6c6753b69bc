package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

type CartRepo interface {
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.CartLine, error)
	// Upsert inserts the line or, when the (user, product) pair already
	// exists, replaces its quantity.
	Upsert(ctx context.Context, line *domain.CartLine) error
	// DeleteByUser clears the cart inside the placement transaction.
	DeleteByUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int, error)
	// DeleteAllByUser clears the cart outside any transaction (explicit
	// empty-cart action).
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepo {
	return &cartRepo{db: db}
}

func (r *cartRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, product_id, quantity, created_at, updated_at FROM cart_items WHERE user_id = $1",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *cartRepo) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.CartLine, error) {
	var l domain.CartLine
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, product_id, quantity, created_at, updated_at FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID).Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *cartRepo) Upsert(ctx context.Context, line *domain.CartLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		line.ID, line.UserID, line.ProductID, line.Quantity, time.Now())
	return err
}

func (r *cartRepo) DeleteByUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *cartRepo) DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
