package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Valid transitions: PENDING -> PAID, PENDING -> CANCELLED, PAID -> CANCELLED.
// CANCELLED is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderPaid || next == OrderCancelled
	case OrderPaid:
		return next == OrderCancelled
	default:
		return false
	}
}

type Order struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Status             OrderStatus
	TotalAmount        decimal.Decimal // snapshot at placement, never recomputed
	ShippingAddress    string
	IdempotencyKey     uuid.UUID
	ConfirmationSent   bool
	ConfirmationSentAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderItem snapshots product name and unit price at placement time so later
// price changes never touch past orders.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}
