package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

// Service reports connection health for the liveness endpoint.
type Service interface {
	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

func connString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		os.Getenv("TZMART_DB_USERNAME"),
		os.Getenv("TZMART_DB_PASSWORD"),
		os.Getenv("TZMART_DB_HOST"),
		os.Getenv("TZMART_DB_PORT"),
		os.Getenv("TZMART_DB_DATABASE"),
		os.Getenv("TZMART_DB_SCHEMA"),
	)
}

// NewPostgres opens the pool configured by the TZMART_DB_* environment.
func NewPostgres() (*sql.DB, error) {
	return sql.Open("pgx", connString())
}

// Open connects to an explicit DSN. Used by tests that provision their own
// Postgres instance.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// NewService wraps an existing pool for health reporting.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// Health pings the database and returns pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
