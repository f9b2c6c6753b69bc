package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

type PaymentRepo interface {
	// Payments are append-only; there is no update method.
	CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	// FindLatestCompleted returns the most recent COMPLETED capture for the
	// order, reading inside the caller's transaction.
	FindLatestCompleted(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		payment.ID, payment.OrderID, payment.Amount, payment.Method, payment.Status, payment.CreatedAt)
	return err
}

func (r *paymentRepo) FindLatestCompleted(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := tx.QueryRowContext(ctx, `
		SELECT id, order_id, amount, method, status, created_at
		FROM payments
		WHERE order_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		orderID, domain.PaymentCompleted).Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, amount, method, status, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
