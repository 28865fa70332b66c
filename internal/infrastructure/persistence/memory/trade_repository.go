package memory

import (
	"context"
	"sync"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

type TradeRepository struct {
	mu     sync.RWMutex
	trades map[string][]domain.TradeReceipt
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{
		trades: make(map[string][]domain.TradeReceipt),
	}
}

func (r *TradeRepository) Append(_ context.Context, receipt *domain.TradeReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trades[receipt.PortfolioID] = append(r.trades[receipt.PortfolioID], *receipt)
	return nil
}

// ListByPortfolio returns a copy of the log in append order.
func (r *TradeRepository) ListByPortfolio(_ context.Context, portfolioID string) ([]domain.TradeReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.trades[portfolioID]
	out := make([]domain.TradeReceipt, len(log))
	copy(out, log)
	return out, nil
}
