package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"tzmart/internal/events"
	"tzmart/internal/infrastructure/notify"
	"tzmart/internal/outbox"
)

// OutboxWorker drains the outbox on a fixed interval: notification rows go to
// the Notifier, everything else is published as an event. A row that fails to
// deliver stays unsent and is retried on the next tick.
type OutboxWorker struct {
	db       *sql.DB
	notifier notify.Notifier
	events   *events.Client
	interval time.Duration
	batch    int
	log      *slog.Logger
}

func NewOutboxWorker(
	db *sql.DB,
	notifier notify.Notifier,
	eventsClient *events.Client,
	interval time.Duration,
	batch int,
	log *slog.Logger,
) *OutboxWorker {
	return &OutboxWorker{
		db:       db,
		notifier: notifier,
		events:   eventsClient,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("outbox worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.log.Error("outbox pass failed", slog.Any("error", err))
			}
		}
	}
}

func (w *OutboxWorker) process(ctx context.Context) error {
	recs, err := outbox.ListUnsent(ctx, w.db, w.batch)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if err := w.dispatch(ctx, rec); err != nil {
			// Best effort: log and leave the row for the next tick.
			w.log.Warn("outbox dispatch failed",
				slog.String("id", rec.ID),
				slog.String("topic", rec.Topic),
				slog.Any("error", err))
			continue
		}
		if err := outbox.MarkSent(ctx, w.db, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (w *OutboxWorker) dispatch(ctx context.Context, rec outbox.Record) error {
	if rec.Topic == outbox.TopicNotifyEmail {
		var n outbox.Notification
		if err := json.Unmarshal(rec.Payload, &n); err != nil {
			return err
		}
		return w.notifier.Send(ctx, n.To, n.Subject, n.Body)
	}

	if w.events != nil && w.events.Enabled() {
		return w.events.Publish(ctx, rec.Key, rec.Payload)
	}
	// No broker configured: the structured log is the event sink.
	w.log.Info("event", slog.String("topic", rec.Topic), slog.String("key", rec.Key))
	return nil
}
