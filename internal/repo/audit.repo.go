package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

type AuditRepo interface {
	// Append writes inside the caller's transaction so the audit row commits
	// or rolls back together with the action it describes.
	Append(ctx context.Context, tx *sql.Tx, rec *domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.AuditRecord, error)
}

type auditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) AuditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, tx *sql.Tx, rec *domain.AuditRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_id, performed_by, performed_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Action, rec.EntityID, rec.PerformedBy, rec.PerformedAt, rec.Details)
	return err
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, entity_id, performed_by, performed_at, details
		FROM audit_logs WHERE entity_id = $1 ORDER BY id`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.EntityID, &rec.PerformedBy, &rec.PerformedAt, &rec.Details); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
