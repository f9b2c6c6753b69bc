package database

import (
	"context"
	"database/sql"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id          UUID PRIMARY KEY,
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	region      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	price          NUMERIC(14,2) NOT NULL,
	stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cart_items (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id),
	product_id UUID NOT NULL REFERENCES products(id),
	quantity   INTEGER NOT NULL CHECK (quantity >= 1),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id                   UUID PRIMARY KEY,
	user_id              UUID NOT NULL REFERENCES users(id),
	status               TEXT NOT NULL,
	total_amount         NUMERIC(14,2) NOT NULL,
	shipping_address     TEXT NOT NULL DEFAULT '',
	idempotency_key      UUID NOT NULL,
	confirmation_sent    BOOLEAN NOT NULL DEFAULT FALSE,
	confirmation_sent_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id           UUID PRIMARY KEY,
	order_id     UUID NOT NULL REFERENCES orders(id),
	product_id   UUID NOT NULL,
	product_name TEXT NOT NULL,
	unit_price   NUMERIC(14,2) NOT NULL,
	quantity     INTEGER NOT NULL CHECK (quantity >= 1)
);

CREATE TABLE IF NOT EXISTS payments (
	id         UUID PRIMARY KEY,
	order_id   UUID NOT NULL REFERENCES orders(id),
	amount     NUMERIC(14,2) NOT NULL,
	method     TEXT NOT NULL DEFAULT 'unknown',
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coupons (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	code             TEXT NOT NULL,
	discount_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
	discount_fixed   NUMERIC(14,2) NOT NULL DEFAULT 0,
	usage_limit      INTEGER NOT NULL DEFAULT 1,
	used_count       INTEGER NOT NULL DEFAULT 0 CHECK (used_count <= usage_limit),
	expires_at       TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS coupons_code_ci ON coupons (lower(code));

CREATE TABLE IF NOT EXISTS audit_logs (
	id           TEXT PRIMARY KEY,
	action       TEXT NOT NULL,
	entity_id    UUID NOT NULL,
	performed_by UUID NOT NULL,
	performed_at TIMESTAMPTZ NOT NULL,
	details      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outbox (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unsent ON outbox (created_at) WHERE sent_at IS NULL;
`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
