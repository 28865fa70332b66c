package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// PortfolioRepository keeps snapshots, never the live aggregate, so a stored
// portfolio cannot change behind the caller's back.
type PortfolioRepository struct {
	mu         sync.RWMutex
	portfolios map[string]domain.PortfolioSnapshot
}

func NewPortfolioRepository() *PortfolioRepository {
	return &PortfolioRepository{
		portfolios: make(map[string]domain.PortfolioSnapshot),
	}
}

func (r *PortfolioRepository) Save(_ context.Context, portfolio *domain.Portfolio) error {
	snap := portfolio.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.portfolios[snap.ID] = snap
	return nil
}

func (r *PortfolioRepository) FindByID(_ context.Context, id string) (*domain.Portfolio, error) {
	r.mu.RLock()
	snap, exists := r.portfolios[id]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}
	return domain.RestorePortfolio(snap)
}

func (r *PortfolioRepository) FindAll(_ context.Context) ([]*domain.Portfolio, error) {
	r.mu.RLock()
	snaps := make([]domain.PortfolioSnapshot, 0, len(r.portfolios))
	for _, s := range r.portfolios {
		snaps = append(snaps, s)
	}
	r.mu.RUnlock()

	portfolios := make([]*domain.Portfolio, 0, len(snaps))
	for _, s := range snaps {
		p, err := domain.RestorePortfolio(s)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, nil
}

func (r *PortfolioRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.portfolios[id]; !exists {
		return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}

	delete(r.portfolios, id)
	return nil
}
