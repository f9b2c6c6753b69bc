package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/repo"
)

// InventoryService owns all stock mutations. Both operations run inside the
// caller's transaction and take the product row lock first, so stock is only
// ever read-modify-written under exclusive access.
type InventoryService interface {
	// Reserve decrements stock for an order and returns the product as seen
	// under the lock, for price/name snapshotting.
	Reserve(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) (*domain.Product, error)
	// Release restores stock on cancellation. It does not enforce an upper
	// bound; a cancellation must never fail because stock came back.
	Release(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) error
}

type inventoryService struct {
	productRepo repo.ProductRepo
}

func NewInventoryService(productRepo repo.ProductRepo) InventoryService {
	return &inventoryService{productRepo: productRepo}
}

func (s *inventoryService) Reserve(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, domain.ErrQuantityInvalid
	}

	product, err := s.productRepo.FindByIdForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, database.MapLockError(err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	if product.StockQuantity < qty {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: product.StockQuantity,
		}
	}

	product.StockQuantity -= qty
	if err := s.productRepo.UpdateStock(ctx, tx, productID, product.StockQuantity); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *inventoryService) Release(ctx context.Context, tx *sql.Tx, productID uuid.UUID, qty int) error {
	product, err := s.productRepo.FindByIdForUpdate(ctx, tx, productID)
	if err != nil {
		return database.MapLockError(err)
	}
	if product == nil {
		// An order item references a product that no longer exists. That is
		// an integrity fault, not a business outcome.
		return fmt.Errorf("product %s vanished while restoring stock", productID)
	}

	return s.productRepo.UpdateStock(ctx, tx, productID, product.StockQuantity+qty)
}
