package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

type ProductRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindByIdForUpdate takes a row-level exclusive lock held until the
	// surrounding transaction commits or rolls back.
	FindByIdForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Product, error)
	UpdateStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, stock int) error
	Create(ctx context.Context, product *domain.Product) error
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

func (r *productRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, price, stock_quantity, created_at, updated_at FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *productRepo) FindByIdForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Product, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT id, name, price, stock_quantity, created_at, updated_at FROM products WHERE id = $1 FOR UPDATE", id)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) UpdateStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, stock int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET stock_quantity = $1, updated_at = $2 WHERE id = $3", stock, time.Now(), id)
	return err
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO products (id, name, price, stock_quantity, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		product.ID, product.Name, product.Price, product.StockQuantity, product.CreatedAt, product.UpdatedAt)
	return err
}
