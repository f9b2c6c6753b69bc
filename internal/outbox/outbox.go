// Package outbox stores side effects that must not roll back the business
// transaction. Rows are inserted inside the transaction and dispatched by a
// background worker after commit.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"

	// TopicNotifyEmail rows carry a Notification payload for the Notifier
	// instead of being published as events.
	TopicNotifyEmail = "notify.email"
)

type Record struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// Notification is the payload shape the dispatcher turns into an email.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Insert enqueues a record inside the caller's transaction.
func Insert(ctx context.Context, tx *sql.Tx, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO outbox (id, topic, key, payload, created_at) VALUES ($1, $2, $3, $4, $5)",
		ulid.Make().String(), topic, key, data, time.Now())
	return err
}

// ListUnsent returns up to limit undelivered records, oldest first.
func ListUnsent(ctx context.Context, db *sql.DB, limit int) ([]Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, key, payload, created_at, sent_at
		FROM outbox WHERE sent_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func MarkSent(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, "UPDATE outbox SET sent_at = now() WHERE id = $1", id)
	return err
}
