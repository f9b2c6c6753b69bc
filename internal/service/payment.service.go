package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tzmart/internal/config"
	"tzmart/internal/database"
	"tzmart/internal/domain"
	"tzmart/internal/infrastructure/payment"
	"tzmart/internal/metrics"
	"tzmart/internal/outbox"
	"tzmart/internal/repo"
)

type PaymentSummary struct {
	OrderID uuid.UUID          `json:"order_id"`
	Amount  decimal.Decimal    `json:"amount"`
	Status  domain.OrderStatus `json:"status"`
	PaidAt  time.Time          `json:"paid_at"`
}

type PaymentService interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, method string) (*PaymentSummary, error)
}

type paymentService struct {
	db          *sql.DB
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	userRepo    repo.UserRepo
	gateway     payment.Gateway
	cfg         config.Config
	metrics     *metrics.LedgerMetrics
}

func NewPaymentService(
	db *sql.DB,
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	userRepo repo.UserRepo,
	gateway payment.Gateway,
	cfg config.Config,
	m *metrics.LedgerMetrics,
) PaymentService {
	return &paymentService{
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		cfg:         cfg,
		metrics:     m,
	}
}

func (s *paymentService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, method string) (*PaymentSummary, error) {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(domain.OrderPaid) {
		return nil, domain.ErrOrderNotPending
	}
	if amount.LessThan(order.TotalAmount) {
		return nil, &domain.InsufficientPaymentError{
			OrderID: orderID,
			Total:   order.TotalAmount,
			Offered: amount,
		}
	}

	// Capture before the transaction, keyed by the order's idempotency key:
	// a retried confirmation is charged at most once by the gateway.
	paid, err := s.gateway.Capture(ctx, amount, order.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("capture for order %s failed: %w", orderID, err)
	}
	if !paid {
		return nil, domain.ErrPaymentDeclined
	}

	tx, err := database.BeginTx(ctx, s.db, s.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Re-read under the row lock: a concurrent cancellation may have won.
	order, err = s.orderRepo.FindByIdForUpdate(ctx, tx, orderID)
	if err != nil {
		err = database.MapLockError(err)
		if s.metrics != nil && errors.Is(err, domain.ErrLockNotAvailable) {
			s.metrics.LockTimeouts.Inc()
		}
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(domain.OrderPaid) {
		return nil, domain.ErrOrderNotPending
	}

	now := time.Now()
	order.Status = domain.OrderPaid
	order.UpdatedAt = now
	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order); err != nil {
		return nil, err
	}

	capture := &domain.Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		Amount:    amount,
		Method:    methodOrUnknown(method),
		Status:    domain.PaymentCompleted,
		CreatedAt: now,
	}
	if err := s.paymentRepo.CreatePayment(ctx, tx, capture); err != nil {
		return nil, err
	}

	if err := s.enqueueConfirmation(ctx, tx, order, amount, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsConfirmed.Inc()
	}
	return &PaymentSummary{OrderID: orderID, Amount: amount, Status: order.Status, PaidAt: now}, nil
}

func (s *paymentService) enqueueConfirmation(ctx context.Context, tx *sql.Tx, order *domain.Order, amount decimal.Decimal, now time.Time) error {
	if err := s.orderRepo.SetConfirmationSent(ctx, tx, order.ID, now); err != nil {
		return err
	}

	user, err := s.userRepo.FindById(ctx, order.UserID)
	if err != nil {
		return err
	}
	if user != nil {
		err = outbox.Insert(ctx, tx, outbox.TopicNotifyEmail, order.ID.String(), outbox.Notification{
			To:      user.Email,
			Subject: fmt.Sprintf("Order confirmation: %s", order.ID),
			Body: fmt.Sprintf("Asante! Your payment of %s TZS for order %s was received.\n\nKaribu tena!",
				amount, order.ID),
		})
		if err != nil {
			return err
		}
	}

	return outbox.Insert(ctx, tx, outbox.TopicOrderPaid, order.ID.String(), map[string]any{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"amount":   amount,
	})
}

func methodOrUnknown(method string) string {
	if method == "" {
		return "unknown"
	}
	return method
}
