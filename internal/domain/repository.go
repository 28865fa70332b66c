package domain

import (
	"context"
	"errors"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

// PortfolioRepository defines the interface for portfolio persistence.
// Implementations store snapshots; callers never share a live Portfolio with the store.
// All methods accept context.Context to enable proper timeout handling,
// cancellation propagation, and request-scoped values like tracing IDs.
type PortfolioRepository interface {
	Save(ctx context.Context, portfolio *Portfolio) error
	FindByID(ctx context.Context, id string) (*Portfolio, error)
	FindAll(ctx context.Context) ([]*Portfolio, error)
	Delete(ctx context.Context, id string) error
}

// TradeRepository is the append-only trade log.
type TradeRepository interface {
	Append(ctx context.Context, receipt *TradeReceipt) error
	ListByPortfolio(ctx context.Context, portfolioID string) ([]TradeReceipt, error)
}
