package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

type OrderRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// FindByIdForUpdate locks the order row so two concurrent cancellations
	// of the same order serialize.
	FindByIdForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error)
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	SetConfirmationSent(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
	CreateOrderItem(ctx context.Context, tx *sql.Tx, item *domain.OrderItem) error
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = "id, user_id, status, total_amount, shipping_address, idempotency_key, confirmation_sent, confirmation_sent_at, created_at, updated_at"

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.IdempotencyKey,
		&order.ConfirmationSent,
		&order.ConfirmationSentAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return &order, nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
}

func (r *orderRepo) FindByIdForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id))
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address, idempotency_key, confirmation_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingAddress,
		order.IdempotencyKey, order.ConfirmationSent, order.CreatedAt, order.UpdatedAt)
	return err
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
		order.Status, order.UpdatedAt, order.ID)
	return err
}

func (r *orderRepo) SetConfirmationSent(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET confirmation_sent = TRUE, confirmation_sent_at = $1, updated_at = $1 WHERE id = $2",
		at, id)
	return err
}

func (r *orderRepo) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.OrderID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity)
	return err
}

func (r *orderRepo) FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress,
			&order.IdempotencyKey,
			&order.ConfirmationSent,
			&order.ConfirmationSentAt,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
