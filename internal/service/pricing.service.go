package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tzmart/internal/config"
	"tzmart/internal/domain"
	"tzmart/internal/repo"
)

type PricedItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type PricingResult struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Items     []PricedItem    `json:"items"`
}

// PricingService computes cart totals. It is a pure read: previewing a total
// never redeems a coupon and never touches stock.
type PricingService interface {
	PreviewCartTotal(ctx context.Context, userID uuid.UUID, couponCode string) (*PricingResult, error)
}

type pricingService struct {
	cartRepo    repo.CartRepo
	productRepo repo.ProductRepo
	couponRepo  repo.CouponRepo
	userRepo    repo.UserRepo
	cfg         config.Config
	now         nowFunc
}

func NewPricingService(
	cartRepo repo.CartRepo,
	productRepo repo.ProductRepo,
	couponRepo repo.CouponRepo,
	userRepo repo.UserRepo,
	cfg config.Config,
) PricingService {
	return &pricingService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		userRepo:    userRepo,
		cfg:         cfg,
		now:         defaultNow,
	}
}

func (s *pricingService) PreviewCartTotal(ctx context.Context, userID uuid.UUID, couponCode string) (*PricingResult, error) {
	user, err := s.userRepo.FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	lines, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &PricingResult{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
	}
	if len(lines) == 0 {
		return result, nil
	}

	for _, line := range lines {
		product, err := s.productRepo.FindById(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue // line references a deleted product, skip it
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		result.Subtotal = result.Subtotal.Add(lineTotal)
		result.ItemCount += line.Quantity
		result.Items = append(result.Items, PricedItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
		})
	}

	if couponCode != "" {
		coupon, err := s.couponRepo.FindByCode(ctx, couponCode)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, domain.ErrCouponInvalid
		}
		if err := coupon.Eligible(s.now()); err != nil {
			return nil, err
		}
		result.Discount = coupon.DiscountFor(result.Subtotal)
	}

	taxRate := s.cfg.TaxRateStandard
	if strings.EqualFold(user.Region, s.cfg.ElevatedRegion) {
		taxRate = s.cfg.TaxRateElevated
	}

	// Half-up to whole shillings.
	result.Tax = result.Subtotal.Sub(result.Discount).Mul(taxRate).Round(0)
	result.Shipping = s.cfg.ShippingFee
	result.Total = result.Subtotal.Sub(result.Discount).Add(result.Tax).Add(result.Shipping)

	return result, nil
}
