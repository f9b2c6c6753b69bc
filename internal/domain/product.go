package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product stock is mutated only by the inventory service, always under a
// row lock. It must never go negative.
type Product struct {
	ID            uuid.UUID
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
