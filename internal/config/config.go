// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration knobs for the HTTP server, pricing rules,
// locking and the outbox dispatcher.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Pricing.
	TaxRateStandard decimal.Decimal
	TaxRateElevated decimal.Decimal
	ElevatedRegion  string
	ShippingFee     decimal.Decimal

	// How long a transaction may wait on a row lock before the operation is
	// aborted with a retryable error.
	LockTimeout time.Duration

	OutboxInterval time.Duration
	OutboxBatch    int

	KafkaBrokers string
	EventsTopic  string

	OperatorEmail string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func decenv(key, def string) decimal.Decimal {
	d, err := decimal.NewFromString(getenv(key, def))
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}

// Load collects configuration from environment with defaults. Amounts and
// rates are whole-TZS oriented: a flat 2000 shipping fee, 15% standard tax
// and 18% for the elevated region.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvms("SHUTDOWN_TIMEOUT_MS", 15000),
		TaxRateStandard: decenv("TAX_RATE_STANDARD", "0.15"),
		TaxRateElevated: decenv("TAX_RATE_ELEVATED", "0.18"),
		ElevatedRegion:  getenv("TAX_ELEVATED_REGION", "Zanzibar"),
		ShippingFee:     decenv("SHIPPING_FEE", "2000"),
		LockTimeout:     durenvms("LOCK_TIMEOUT_MS", 3000),
		OutboxInterval:  durenvms("OUTBOX_INTERVAL_MS", 1000),
		OutboxBatch:     atoienv("OUTBOX_BATCH", 50),
		KafkaBrokers:    getenv("KAFKA_BROKERS", ""),
		EventsTopic:     getenv("EVENTS_TOPIC", "tzmart.order-events"),
		OperatorEmail:   getenv("OPERATOR_EMAIL", "ops@tzmart.example"),
	}
}
