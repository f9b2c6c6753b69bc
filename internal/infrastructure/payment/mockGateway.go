package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the abstract payment capability the core depends on. A capture
// failure aborts the whole confirmation; a refund failure aborts the whole
// cancellation. Money correctness beats availability here.
type Gateway interface {
	Capture(ctx context.Context, amount decimal.Decimal, idempotencyKey uuid.UUID) (bool, error)
	Refund(ctx context.Context, amount decimal.Decimal, idempotencyKey uuid.UUID) error
	CheckStatus(ctx context.Context, idempotencyKey uuid.UUID) (bool, error)
}

type mockGateway struct {
	mu            sync.RWMutex
	chargeSuccess map[string]bool
	refunds       map[string]decimal.Decimal

	// flaky turns on the random decline/timeout behaviour, for simulations.
	flaky bool
}

// NewGateway returns a deterministic in-memory gateway: every capture and
// refund succeeds, keyed by idempotency key.
func NewGateway() Gateway {
	return &mockGateway{
		chargeSuccess: make(map[string]bool),
		refunds:       make(map[string]decimal.Decimal),
	}
}

// NewFlakyGateway behaves like a real network: most captures succeed, some
// decline, a few time out after the money already moved.
func NewFlakyGateway() Gateway {
	return &mockGateway{
		chargeSuccess: make(map[string]bool),
		refunds:       make(map[string]decimal.Decimal),
		flaky:         true,
	}
}

func (g *mockGateway) Capture(ctx context.Context, amount decimal.Decimal, idempotencyKey uuid.UUID) (bool, error) {
	key := idempotencyKey.String()

	// check idempotency key (if charged, return recorded outcome)
	g.mu.RLock()
	if paid, exists := g.chargeSuccess[key]; exists {
		g.mu.RUnlock()
		return paid, nil
	}
	g.mu.RUnlock()

	if !g.flaky {
		g.mu.Lock()
		g.chargeSuccess[key] = true
		g.mu.Unlock()
		return true, nil
	}

	chance := rand.IntN(100)
	switch {
	case chance < 70:
		time.Sleep(100 * time.Millisecond)
		g.mu.Lock()
		g.chargeSuccess[key] = true
		g.mu.Unlock()
		return true, nil

	case chance < 90:
		time.Sleep(100 * time.Millisecond)
		g.mu.Lock()
		g.chargeSuccess[key] = false
		g.mu.Unlock()
		return false, errors.New("card declined")

	default:
		// The provider charged but we see a timeout.
		time.Sleep(2 * time.Second)
		g.mu.Lock()
		g.chargeSuccess[key] = true
		g.mu.Unlock()
		return false, errors.New("connection timeout")
	}
}

func (g *mockGateway) Refund(ctx context.Context, amount decimal.Decimal, idempotencyKey uuid.UUID) error {
	key := idempotencyKey.String()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.refunds[key]; exists {
		return nil // already refunded, idempotent
	}
	g.refunds[key] = amount
	return nil
}

func (g *mockGateway) CheckStatus(ctx context.Context, idempotencyKey uuid.UUID) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if paid, exists := g.chargeSuccess[idempotencyKey.String()]; exists {
		return paid, nil
	}
	return false, nil
}
