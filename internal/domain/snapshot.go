package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSnapshot = errors.New("invalid portfolio snapshot")

// PortfolioSnapshot is the serializable state of a Portfolio. Restoring a
// snapshot yields an identical ledger.
type PortfolioSnapshot struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"`
	Cash        Decimal        `json:"cash"`
	Holdings    []HoldingEntry `json:"holdings"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
}

func (p *Portfolio) Snapshot() PortfolioSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PortfolioSnapshot{
		ID:          p.id,
		Owner:       p.owner,
		Cash:        p.cash,
		Holdings:    p.sortedHoldingsLocked(),
		CreatedAt:   p.createdAt,
		LastUpdated: p.lastUpdated,
	}
}

// RestorePortfolio rebuilds a Portfolio from s after checking the ledger invariants.
func RestorePortfolio(s PortfolioSnapshot) (*Portfolio, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}
	if !s.Cash.IsFinite() || s.Cash.Sign() < 0 {
		return nil, fmt.Errorf("%w: cash %s", ErrInvalidSnapshot, s.Cash)
	}

	holdings := make(map[AssetKey]HoldingEntry, len(s.Holdings))
	for _, h := range s.Holdings {
		key := h.Key()
		if h.AssetID == "" || !h.AssetType.IsValid() {
			return nil, fmt.Errorf("%w: bad holding key %s", ErrInvalidSnapshot, key)
		}
		if !h.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: %s quantity %s", ErrInvalidSnapshot, key, h.Quantity)
		}
		if !h.AverageBuyPrice.IsFinite() || h.AverageBuyPrice.Sign() < 0 {
			return nil, fmt.Errorf("%w: %s average price %s", ErrInvalidSnapshot, key, h.AverageBuyPrice)
		}
		if _, dup := holdings[key]; dup {
			return nil, fmt.Errorf("%w: duplicate holding %s", ErrInvalidSnapshot, key)
		}
		holdings[key] = h
	}

	return &Portfolio{
		id:          s.ID,
		owner:       s.Owner,
		cash:        s.Cash,
		holdings:    holdings,
		createdAt:   s.CreatedAt,
		lastUpdated: s.LastUpdated,
	}, nil
}

// Restore replaces the state of p with s, keeping p's identity. Used to roll
// back an in-memory trade whose persistence failed.
func (p *Portfolio) Restore(s PortfolioSnapshot) error {
	if s.ID != p.id {
		return fmt.Errorf("%w: snapshot %s does not belong to portfolio %s", ErrInvalidSnapshot, s.ID, p.id)
	}
	restored, err := RestorePortfolio(s)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = restored.cash
	p.holdings = restored.holdings
	p.lastUpdated = restored.lastUpdated
	return nil
}
