package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is one (user, product) pair in a cart. The pair is unique;
// adding the same product again bumps the quantity.
type CartLine struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
