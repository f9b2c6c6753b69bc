package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tzmart/internal/config"
	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/infrastructure/payment"
	"tzmart/internal/metrics"
	"tzmart/internal/repo"
	"tzmart/internal/service"
)

// Hammers one product and one single-use coupon with concurrent requests
// against a flaky payment provider, then checks the ledger invariants:
// stock never oversold, coupon never redeemed past its limit, and every
// capture the provider made ends up recorded exactly once.
func main() {
	ctx := context.Background()
	cfg := config.Load()
	db, err := database.NewPostgres()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal(err)
	}

	m := metrics.NewLedgerMetrics()
	userRepo := repo.NewUserRepo(db)
	productRepo := repo.NewProductRepo(db)
	cartRepo := repo.NewCartRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	couponRepo := repo.NewCouponRepo(db)
	auditRepo := repo.NewAuditRepo(db)

	inventory := service.NewInventoryService(productRepo)
	gateway := payment.NewFlakyGateway()
	orders := service.NewOrderService(db, orderRepo, cartRepo, paymentRepo, userRepo, auditRepo, inventory, gateway, cfg, m)
	coupons := service.NewCouponService(db, couponRepo, userRepo, cfg, m)
	carts := service.NewCartService(cartRepo, productRepo, userRepo)
	payments := service.NewPaymentService(db, orderRepo, paymentRepo, userRepo, gateway, cfg, m)

	const (
		buyers       = 20
		initialStock = 5
	)

	product := &domain.Product{
		ID:            uuid.New(),
		Name:          "Kitenge Shirt",
		Price:         decimal.NewFromInt(10000),
		StockQuantity: initialStock,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := productRepo.Create(ctx, product); err != nil {
		log.Fatal(err)
	}

	coupon := &domain.Coupon{
		Code:            fmt.Sprintf("KARIBU-%d", time.Now().UnixNano()),
		DiscountPercent: decimal.NewFromInt(10),
		UsageLimit:      1,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	if err := coupons.CreateCoupon(ctx, coupon); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("--- STARTING SIMULATION (%d BUYERS, STOCK %d, COUPON LIMIT 1, FLAKY GATEWAY) ---\n", buyers, initialStock)

	var placed, stockConflicts, redeemed, exhausted atomic.Int64
	var confirmed, declined, timeouts, recovered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			user := &domain.User{
				ID:        uuid.New(),
				Email:     fmt.Sprintf("buyer%d@example.tz", n),
				Name:      fmt.Sprintf("Buyer %d", n),
				Region:    "Dar es Salaam",
				CreatedAt: time.Now(),
			}
			if err := userRepo.Create(ctx, user); err != nil {
				log.Printf("create user: %v", err)
				return
			}

			if _, err := carts.AddToCart(ctx, user.ID, product.ID, 1); err != nil {
				var stockErr *domain.InsufficientStockError
				if !errors.As(err, &stockErr) {
					log.Printf("add to cart: %v", err)
				}
				stockConflicts.Add(1)
				return
			}

			summary, err := orders.PlaceOrder(ctx, user.ID, "P.O. Box 1, Dar es Salaam")
			if err != nil {
				var stockErr *domain.InsufficientStockError
				if errors.As(err, &stockErr) {
					stockConflicts.Add(1)
				} else {
					log.Printf("place order: %v", err)
				}
				return
			}
			placed.Add(1)

			if _, err := coupons.ApplyCoupon(ctx, user.ID, coupon.Code, summary.Total); err != nil {
				if errors.Is(err, domain.ErrCouponExhausted) {
					exhausted.Add(1)
				}
			} else {
				redeemed.Add(1)
			}

			_, err = payments.ConfirmPayment(ctx, summary.OrderID, summary.Total, "mpesa")
			switch {
			case err == nil:
				confirmed.Add(1)

			case errors.Is(err, domain.ErrPaymentDeclined):
				declined.Add(1)

			default:
				// A capture timeout: the provider may have charged anyway.
				// Ask the gateway for the settled outcome and retry; the
				// order's idempotency key makes the retry charge-at-most-once.
				timeouts.Add(1)
				order, ferr := orderRepo.FindById(ctx, summary.OrderID)
				if ferr != nil || order == nil {
					log.Printf("reload order %s: %v", summary.OrderID, ferr)
					return
				}
				charged, serr := gateway.CheckStatus(ctx, order.IdempotencyKey)
				if serr != nil || !charged {
					return
				}
				if _, rerr := payments.ConfirmPayment(ctx, summary.OrderID, summary.Total, "mpesa"); rerr == nil {
					recovered.Add(1)
					confirmed.Add(1)
				} else {
					log.Printf("phantom charge on order %s not recorded: %v", summary.OrderID, rerr)
				}
			}
		}(i)
	}
	wg.Wait()

	fresh, err := productRepo.FindById(ctx, product.ID)
	if err != nil {
		log.Fatal(err)
	}
	freshCoupon, err := couponRepo.FindByCode(ctx, coupon.Code)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("orders placed:    %d (stock conflicts: %d)\n", placed.Load(), stockConflicts.Load())
	fmt.Printf("final stock:      %d (expected %d)\n", fresh.StockQuantity, initialStock-int(placed.Load()))
	fmt.Printf("coupon redeemed:  %d (exhausted rejections: %d, used_count=%d/%d)\n",
		redeemed.Load(), exhausted.Load(), freshCoupon.UsedCount, freshCoupon.UsageLimit)
	fmt.Printf("payments:         %d confirmed, %d declined, %d timeouts (%d recovered via status check)\n",
		confirmed.Load(), declined.Load(), timeouts.Load(), recovered.Load())

	ok := fresh.StockQuantity >= 0 &&
		int(placed.Load()) <= initialStock &&
		freshCoupon.UsedCount <= freshCoupon.UsageLimit &&
		confirmed.Load() <= placed.Load()
	if ok {
		fmt.Println("INVARIANTS HELD")
	} else {
		fmt.Println("INVARIANT VIOLATION")
	}
}
