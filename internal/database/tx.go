package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tzmart/internal/domain"
)

// Postgres SQLSTATE for "lock_not_available", raised when lock_timeout fires.
const lockNotAvailableCode = "55P03"

// BeginTx starts a transaction with a bounded row-lock wait. A contender that
// cannot take a lock within lockTimeout gets 55P03 from Postgres instead of
// blocking forever; MapLockError turns that into a retryable domain error.
func BeginTx(ctx context.Context, db *sql.DB, lockTimeout time.Duration) (*sql.Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if lockTimeout > 0 {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds()))
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	return tx, nil
}

// MapLockError rewrites a lock_timeout failure into domain.ErrLockNotAvailable
// and passes every other error through unchanged.
func MapLockError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailableCode {
		return fmt.Errorf("%w: %s", domain.ErrLockNotAvailable, pgErr.Message)
	}
	return err
}
