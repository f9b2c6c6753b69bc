package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tzmart/internal/domain"
	"tzmart/internal/repo"
)

type CartService interface {
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error)
	EmptyCart(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartService struct {
	cartRepo    repo.CartRepo
	productRepo repo.ProductRepo
	userRepo    repo.UserRepo
}

func NewCartService(cartRepo repo.CartRepo, productRepo repo.ProductRepo, userRepo repo.UserRepo) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo, userRepo: userRepo}
}

func (s *cartService) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	if quantity < 1 {
		return nil, domain.ErrQuantityInvalid
	}

	user, err := s.userRepo.FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	product, err := s.productRepo.FindById(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	line, err := s.cartRepo.FindByUserAndProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	if line != nil {
		newQuantity += line.Quantity
	}

	// Courtesy check only. The binding stock check happens under the product
	// row lock at placement.
	if newQuantity > product.StockQuantity {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: newQuantity,
			Available: product.StockQuantity,
		}
	}

	// A fresh id on every attempt: on conflict the stored row keeps its own
	// id and only the quantity is replaced.
	now := time.Now()
	candidate := &domain.CartLine{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  newQuantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.cartRepo.Upsert(ctx, candidate); err != nil {
		return nil, err
	}
	return s.cartRepo.FindByUserAndProduct(ctx, userID, productID)
}

func (s *cartService) EmptyCart(ctx context.Context, userID uuid.UUID) (int, error) {
	lines, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil // nothing to delete
	}
	return s.cartRepo.DeleteAllByUser(ctx, userID)
}
