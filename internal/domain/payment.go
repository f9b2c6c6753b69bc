package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment rows form an append-only ledger per order: a positive COMPLETED
// capture, and at most one negative REFUNDED row if the order is cancelled.
// Rows are never mutated after insert.
type Payment struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Amount    decimal.Decimal // negative for refunds
	Method    string
	Status    PaymentStatus
	CreatedAt time.Time
}
