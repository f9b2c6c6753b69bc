package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"tzmart/internal/config"
	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/infrastructure/payment"
	"tzmart/internal/metrics"
	"tzmart/internal/outbox"
	"tzmart/internal/repo"
)

type OrderSummary struct {
	OrderID uuid.UUID          `json:"order_id"`
	Total   decimal.Decimal    `json:"total"`
	Status  domain.OrderStatus `json:"status"`
}

type CancellationSummary struct {
	OrderID      uuid.UUID          `json:"order_id"`
	Status       domain.OrderStatus `json:"status"`
	RefundAmount decimal.Decimal    `json:"refund_amount"`
	Items        []domain.OrderItem `json:"items"`
}

// OrderService orchestrates the order lifecycle. PlaceOrder and CancelOrder
// each run as one transaction: every stock move, the status change, payment
// ledger rows and the audit trail commit or roll back together. Notification
// delivery is deliberately outside that boundary, via the outbox.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress string) (*OrderSummary, error)
	CancelOrder(ctx context.Context, orderID, actorID uuid.UUID) (*CancellationSummary, error)
	OrderHistory(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
}

type orderService struct {
	db          *sql.DB
	orderRepo   repo.OrderRepo
	cartRepo    repo.CartRepo
	paymentRepo repo.PaymentRepo
	userRepo    repo.UserRepo
	auditRepo   repo.AuditRepo
	inventory   InventoryService
	gateway     payment.Gateway
	cfg         config.Config
	metrics     *metrics.LedgerMetrics
}

func NewOrderService(
	db *sql.DB,
	orderRepo repo.OrderRepo,
	cartRepo repo.CartRepo,
	paymentRepo repo.PaymentRepo,
	userRepo repo.UserRepo,
	auditRepo repo.AuditRepo,
	inventory InventoryService,
	gateway payment.Gateway,
	cfg config.Config,
	m *metrics.LedgerMetrics,
) OrderService {
	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		inventory:   inventory,
		gateway:     gateway,
		cfg:         cfg,
		metrics:     m,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress string) (*OrderSummary, error) {
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
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Lock products in ascending id order. Every placement and cancellation
	// uses the same total order, so two orders sharing products can never
	// deadlock each other.
	sortLinesByProduct(lines)

	tx, err := database.BeginTx(ctx, s.db, s.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          domain.OrderPending,
		TotalAmount:     decimal.Zero,
		ShippingAddress: shippingAddress,
		IdempotencyKey:  uuid.New(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := s.inventory.Reserve(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			s.countStockConflict(err)
			s.countLockTimeout(err)
			return nil, err
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		order.TotalAmount = order.TotalAmount.Add(lineTotal)
		items = append(items, domain.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		})
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	for i := range items {
		if err := s.orderRepo.CreateOrderItem(ctx, tx, &items[i]); err != nil {
			return nil, err
		}
	}

	if _, err := s.cartRepo.DeleteByUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	err = outbox.Insert(ctx, tx, outbox.TopicOrderPlaced, order.ID.String(), map[string]any{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount,
		"items":    len(items),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersPlaced.Inc()
	}
	return &OrderSummary{OrderID: order.ID, Total: order.TotalAmount, Status: order.Status}, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID) (*CancellationSummary, error) {
	tx, err := database.BeginTx(ctx, s.db, s.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the order row so a concurrent cancel or payment confirmation of
	// the same order serializes behind us.
	order, err := s.orderRepo.FindByIdForUpdate(ctx, tx, orderID)
	if err != nil {
		err = database.MapLockError(err)
		s.countLockTimeout(err)
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	items, err := s.orderRepo.FindItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Only a terminal order refuses the transition. Cancelling twice is a
	// no-op, not an error.
	if !order.Status.CanTransitionTo(domain.OrderCancelled) {
		return &CancellationSummary{
			OrderID:      order.ID,
			Status:       order.Status,
			RefundAmount: decimal.Zero,
			Items:        items,
		}, nil
	}

	now := time.Now()
	refundAmount := decimal.Zero

	if order.Status == domain.OrderPaid {
		capture, err := s.paymentRepo.FindLatestCompleted(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if capture != nil {
			// Refund policy: full order total. Partial refunds are a future
			// extension.
			refundAmount = order.TotalAmount

			if err := s.gateway.Refund(ctx, refundAmount, order.IdempotencyKey); err != nil {
				return nil, fmt.Errorf("refund for order %s failed: %w", orderID, err)
			}

			refund := &domain.Payment{
				ID:        uuid.New(),
				OrderID:   orderID,
				Amount:    refundAmount.Neg(),
				Method:    capture.Method,
				Status:    domain.PaymentRefunded,
				CreatedAt: now,
			}
			if err := s.paymentRepo.CreatePayment(ctx, tx, refund); err != nil {
				return nil, err
			}
		} else {
			// Paid order without a completed payment row. Keep cancelling,
			// but leave a trace for reconciliation.
			anomaly := &domain.AuditRecord{
				ID:          ulid.Make().String(),
				Action:      domain.AuditRefundAnomaly,
				EntityID:    orderID,
				PerformedBy: actorID,
				PerformedAt: now,
				Details:     fmt.Sprintf("order %s marked PAID but no completed payment record found", orderID),
			}
			if err := s.auditRepo.Append(ctx, tx, anomaly); err != nil {
				return nil, err
			}
		}
	}

	sortItemsByProduct(items)
	for _, item := range items {
		if err := s.inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderCancelled
	order.UpdatedAt = now
	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order); err != nil {
		return nil, err
	}

	audit := &domain.AuditRecord{
		ID:          ulid.Make().String(),
		Action:      domain.AuditOrderCancelled,
		EntityID:    orderID,
		PerformedBy: actorID,
		PerformedAt: now,
		Details:     fmt.Sprintf("order %s cancelled; refund=%s TZS", orderID, refundAmount),
	}
	if err := s.auditRepo.Append(ctx, tx, audit); err != nil {
		return nil, err
	}

	if err := s.enqueueCancellationNotices(ctx, tx, order, refundAmount, len(items)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	return &CancellationSummary{
		OrderID:      order.ID,
		Status:       order.Status,
		RefundAmount: refundAmount,
		Items:        items,
	}, nil
}

func (s *orderService) OrderHistory(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	user, err := s.userRepo.FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.orderRepo.FindByUser(ctx, userID)
}

// enqueueCancellationNotices records the customer and operator emails and the
// cancellation event in the outbox. The worker delivers them after commit;
// delivery failure can never roll back the cancellation.
func (s *orderService) enqueueCancellationNotices(ctx context.Context, tx *sql.Tx, order *domain.Order, refund decimal.Decimal, itemCount int) error {
	user, err := s.userRepo.FindById(ctx, order.UserID)
	if err != nil {
		return err
	}

	if user != nil {
		err = outbox.Insert(ctx, tx, outbox.TopicNotifyEmail, order.ID.String(), outbox.Notification{
			To:      user.Email,
			Subject: fmt.Sprintf("Order cancelled: %s", order.ID),
			Body: fmt.Sprintf("Hello %s,\n\nYour order %s has been cancelled. Refund amount: %s TZS.\n\nAsante, TZMart",
				user.Name, order.ID, refund),
		})
		if err != nil {
			return err
		}
	}

	err = outbox.Insert(ctx, tx, outbox.TopicNotifyEmail, order.ID.String(), outbox.Notification{
		To:      s.cfg.OperatorEmail,
		Subject: fmt.Sprintf("Order cancelled (admin): %s", order.ID),
		Body: fmt.Sprintf("Order %s cancelled. Refund: %s TZS. Items: %d",
			order.ID, refund, itemCount),
	})
	if err != nil {
		return err
	}

	return outbox.Insert(ctx, tx, outbox.TopicOrderCancelled, order.ID.String(), map[string]any{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"refund":   refund,
	})
}

func (s *orderService) countStockConflict(err error) {
	if s.metrics == nil {
		return
	}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		s.metrics.StockConflicts.Inc()
	}
}

func (s *orderService) countLockTimeout(err error) {
	if s.metrics != nil && errors.Is(err, domain.ErrLockNotAvailable) {
		s.metrics.LockTimeouts.Inc()
	}
}

func sortLinesByProduct(lines []domain.CartLine) {
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})
}

func sortItemsByProduct(items []domain.OrderItem) {
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
	})
}
