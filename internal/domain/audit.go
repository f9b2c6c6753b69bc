package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditOrderCancelled = "ORDER_CANCELLED"
	AuditRefundAnomaly  = "REFUND_ANOMALY"
)

// AuditRecord is append-only; rows are never updated or deleted. The ULID id
// keeps the stream sortable by insertion time.
type AuditRecord struct {
	ID          string
	Action      string
	EntityID    uuid.UUID
	PerformedBy uuid.UUID
	PerformedAt time.Time
	Details     string
}
