package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/infrastructure/payment"
	"tzmart/internal/outbox"
	"tzmart/internal/repo"
)

// These tests exercise the locking discipline against a real Postgres; the
// in-memory fakes cannot reproduce row locks.

type pgEnv struct {
	db          *sql.DB
	users       repo.UserRepo
	products    repo.ProductRepo
	carts       CartService
	cartRepo    repo.CartRepo
	orders      OrderService
	coupons     CouponService
	couponRepo  repo.CouponRepo
	payments    PaymentService
	paymentRepo repo.PaymentRepo
	audits      repo.AuditRepo
	orderRepo   repo.OrderRepo
}

func startPostgres(t *testing.T) *pgEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres-backed test in short mode")
	}

	ctx := context.Background()
	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tzmart"),
		tcpostgres.WithUsername("tzmart"),
		tcpostgres.WithPassword("tzmart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgc.Terminate(ctx) })

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))

	cfg := testConfig()
	userRepo := repo.NewUserRepo(db)
	productRepo := repo.NewProductRepo(db)
	cartRepo := repo.NewCartRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	couponRepo := repo.NewCouponRepo(db)
	auditRepo := repo.NewAuditRepo(db)
	inventory := NewInventoryService(productRepo)
	gateway := payment.NewGateway()

	return &pgEnv{
		db:          db,
		users:       userRepo,
		products:    productRepo,
		carts:       NewCartService(cartRepo, productRepo, userRepo),
		cartRepo:    cartRepo,
		orders:      NewOrderService(db, orderRepo, cartRepo, paymentRepo, userRepo, auditRepo, inventory, gateway, cfg, nil),
		coupons:     NewCouponService(db, couponRepo, userRepo, cfg, nil),
		couponRepo:  couponRepo,
		payments:    NewPaymentService(db, orderRepo, paymentRepo, userRepo, gateway, cfg, nil),
		paymentRepo: paymentRepo,
		audits:      auditRepo,
		orderRepo:   orderRepo,
	}
}

func (e *pgEnv) seedUser(t *testing.T, region string) uuid.UUID {
	t.Helper()
	u := &domain.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s@example.tz", uuid.NewString()[:8]),
		Name:      "Mteja",
		Region:    region,
		CreatedAt: time.Now(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

func (e *pgEnv) seedProduct(t *testing.T, name string, price int64, stock int) uuid.UUID {
	t.Helper()
	p := &domain.Product{
		ID:            uuid.New(),
		Name:          name,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, e.products.Create(context.Background(), p))
	return p.ID
}

func TestPlaceOrderCommitsStockAndClearsCart(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Kitenge Shirt", 2000, 5)

	_, err := env.carts.AddToCart(ctx, userID, productID, 5)
	require.NoError(t, err)

	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, summary.Status)
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(10000)), "total %s", summary.Total)

	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.StockQuantity)

	lines, err := env.cartRepo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	items, err := env.orderRepo.FindItemsByOrder(ctx, summary.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kitenge Shirt", items[0].ProductName)
	assert.Equal(t, 5, items[0].Quantity)

	// Depleted stock rejects the next placement.
	otherUser := env.seedUser(t, "Dar es Salaam")
	line := &domain.CartLine{ID: uuid.New(), UserID: otherUser, ProductID: productID, Quantity: 1}
	require.NoError(t, env.cartRepo.Upsert(ctx, line))

	_, err = env.orders.PlaceOrder(ctx, otherUser, "P.O. Box 2")
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, productID, stockErr.ProductID)
}

func TestPlaceOrderEmptyCartRejected(t *testing.T) {
	env := startPostgres(t)
	userID := env.seedUser(t, "Dar es Salaam")

	_, err := env.orders.PlaceOrder(context.Background(), userID, "P.O. Box 1")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	const (
		initialStock = 5
		buyers       = 20
	)
	productID := env.seedProduct(t, "Kanga", 3000, initialStock)

	var placed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := env.seedUser(t, "Dar es Salaam")
			line := &domain.CartLine{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: 1}
			if err := env.cartRepo.Upsert(ctx, line); err != nil {
				t.Error(err)
				return
			}
			if _, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1"); err == nil {
				placed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(initialStock), placed.Load())

	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.StockQuantity)
	assert.GreaterOrEqual(t, fresh.StockQuantity, 0)
}

func TestConcurrentCouponRedemptionHonoursLimit(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	coupon := &domain.Coupon{
		Code:            "MOJA-TU",
		DiscountPercent: decimal.NewFromInt(10),
		UsageLimit:      1,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, env.coupons.CreateCoupon(ctx, coupon))

	const contenders = 10
	var succeeded, exhausted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := env.seedUser(t, "Dar es Salaam")
			_, err := env.coupons.ApplyCoupon(ctx, userID, "moja-tu", decimal.NewFromInt(10000))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrCouponExhausted):
				exhausted.Add(1)
			default:
				t.Errorf("unexpected redemption error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), succeeded.Load())
	assert.Equal(t, int64(contenders-1), exhausted.Load())

	fresh, err := env.couponRepo.FindByCode(ctx, "MOJA-TU")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.UsedCount)
}

func TestCancelPaidOrderRefundsAndRestoresStock(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Zawadi Box", 13500, 3)

	_, err := env.carts.AddToCart(ctx, userID, productID, 1)
	require.NoError(t, err)
	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)

	paySummary, err := env.payments.ConfirmPayment(ctx, summary.OrderID, decimal.NewFromInt(13500), "mpesa")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paySummary.Status)

	cancel, err := env.orders.CancelOrder(ctx, summary.OrderID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancel.Status)
	assert.True(t, cancel.RefundAmount.Equal(decimal.NewFromInt(13500)))

	// Payment ledger: one positive capture, one negative refund.
	ledger, err := env.paymentRepo.ListByOrder(ctx, summary.OrderID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.PaymentCompleted, ledger[0].Status)
	assert.True(t, ledger[0].Amount.Equal(decimal.NewFromInt(13500)))
	assert.Equal(t, domain.PaymentRefunded, ledger[1].Status)
	assert.True(t, ledger[1].Amount.Equal(decimal.NewFromInt(-13500)), "refund %s", ledger[1].Amount)

	// Stock back where it started.
	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.StockQuantity)

	// Audit trail records the cancellation.
	audits, err := env.audits.ListByEntity(ctx, summary.OrderID)
	require.NoError(t, err)
	require.NotEmpty(t, audits)
	assert.Equal(t, domain.AuditOrderCancelled, audits[len(audits)-1].Action)
}

func TestCancelOrderIdempotent(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Kofia", 5000, 2)

	_, err := env.carts.AddToCart(ctx, userID, productID, 2)
	require.NoError(t, err)
	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)

	_, err = env.payments.ConfirmPayment(ctx, summary.OrderID, decimal.NewFromInt(10000), "mpesa")
	require.NoError(t, err)

	first, err := env.orders.CancelOrder(ctx, summary.OrderID, userID)
	require.NoError(t, err)
	assert.True(t, first.RefundAmount.Equal(decimal.NewFromInt(10000)))

	second, err := env.orders.CancelOrder(ctx, summary.OrderID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, second.Status)
	assert.True(t, second.RefundAmount.IsZero())

	// Exactly one refund row regardless of how many times we cancel.
	ledger, err := env.paymentRepo.ListByOrder(ctx, summary.OrderID)
	require.NoError(t, err)
	refunds := 0
	for _, p := range ledger {
		if p.Status == domain.PaymentRefunded {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)

	// Stock restored once, not twice.
	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.StockQuantity)
}

func TestCancelPendingOrderSkipsRefund(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Kikapu", 4000, 4)

	_, err := env.carts.AddToCart(ctx, userID, productID, 1)
	require.NoError(t, err)
	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)

	cancel, err := env.orders.CancelOrder(ctx, summary.OrderID, userID)
	require.NoError(t, err)
	assert.True(t, cancel.RefundAmount.IsZero())

	ledger, err := env.paymentRepo.ListByOrder(ctx, summary.OrderID)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.StockQuantity)
}

func TestConfirmPaymentGuards(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Sahani", 6000, 2)

	_, err := env.carts.AddToCart(ctx, userID, productID, 1)
	require.NoError(t, err)
	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)

	_, err = env.payments.ConfirmPayment(ctx, summary.OrderID, decimal.NewFromInt(5999), "mpesa")
	var payErr *domain.InsufficientPaymentError
	require.ErrorAs(t, err, &payErr)
	assert.True(t, payErr.Total.Equal(decimal.NewFromInt(6000)))

	_, err = env.payments.ConfirmPayment(ctx, summary.OrderID, decimal.NewFromInt(6000), "mpesa")
	require.NoError(t, err)

	// Paid orders cannot be paid again.
	_, err = env.payments.ConfirmPayment(ctx, summary.OrderID, decimal.NewFromInt(6000), "mpesa")
	assert.ErrorIs(t, err, domain.ErrOrderNotPending)

	_, err = env.payments.ConfirmPayment(ctx, uuid.New(), decimal.NewFromInt(6000), "mpesa")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPlaceOrderAbortsWhenProductLockHeld(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Kitambaa", 8000, 10)

	_, err := env.carts.AddToCart(ctx, userID, productID, 1)
	require.NoError(t, err)

	// Hold the product row lock in a foreign transaction.
	holder, err := env.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = env.products.FindByIdForUpdate(ctx, holder, productID)
	require.NoError(t, err)

	// The contender waits at most LockTimeout, then aborts retryable.
	_, err = env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.ErrorIs(t, err, domain.ErrLockNotAvailable)

	// Nothing committed: stock untouched, cart still loaded.
	require.NoError(t, holder.Rollback())
	fresh, err := env.products.FindById(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.StockQuantity)
	lines, err := env.cartRepo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	// With the lock released the same placement goes through.
	_, err = env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)
}

func TestApplyCouponAbortsWhenCouponLockHeld(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	coupon := &domain.Coupon{
		Code:            "SHIKILIA",
		DiscountPercent: decimal.NewFromInt(10),
		UsageLimit:      100,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, env.coupons.CreateCoupon(ctx, coupon))

	holder, err := env.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = env.couponRepo.FindByCodeForUpdate(ctx, holder, "SHIKILIA")
	require.NoError(t, err)

	_, err = env.coupons.ApplyCoupon(ctx, userID, "SHIKILIA", decimal.NewFromInt(10000))
	require.ErrorIs(t, err, domain.ErrLockNotAvailable)

	// The aborted attempt consumed nothing.
	require.NoError(t, holder.Rollback())
	fresh, err := env.couponRepo.FindByCode(ctx, "SHIKILIA")
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.UsedCount)

	_, err = env.coupons.ApplyCoupon(ctx, userID, "SHIKILIA", decimal.NewFromInt(10000))
	require.NoError(t, err)
}

func TestCancellationWritesOutbox(t *testing.T) {
	env := startPostgres(t)
	ctx := context.Background()

	userID := env.seedUser(t, "Dar es Salaam")
	productID := env.seedProduct(t, "Mkeka", 7000, 1)

	_, err := env.carts.AddToCart(ctx, userID, productID, 1)
	require.NoError(t, err)
	summary, err := env.orders.PlaceOrder(ctx, userID, "P.O. Box 1")
	require.NoError(t, err)

	_, err = env.orders.CancelOrder(ctx, summary.OrderID, userID)
	require.NoError(t, err)

	recs, err := outbox.ListUnsent(ctx, env.db, 100)
	require.NoError(t, err)

	var emails, events int
	for _, rec := range recs {
		if rec.Key != summary.OrderID.String() {
			continue
		}
		switch rec.Topic {
		case outbox.TopicNotifyEmail:
			emails++
		case outbox.TopicOrderCancelled, outbox.TopicOrderPlaced:
			events++
		}
	}
	assert.Equal(t, 2, emails, "customer and operator notices")
	assert.Equal(t, 2, events, "placed and cancelled events")

	// Marking sent removes the row from the unsent view.
	require.NoError(t, outbox.MarkSent(ctx, env.db, recs[0].ID))
	after, err := outbox.ListUnsent(ctx, env.db, 100)
	require.NoError(t, err)
	assert.Len(t, after, len(recs)-1)
}
