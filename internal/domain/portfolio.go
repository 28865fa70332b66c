package domain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidInitialCash = errors.New("initial cash must be a finite, non-negative value")

// Portfolio is the ledger aggregate: a cash balance plus the set of holdings.
// It is safe for concurrent use; ExecuteTrade is the only mutating operation.
type Portfolio struct {
	mu          sync.RWMutex
	id          string
	owner       string
	cash        Decimal
	holdings    map[AssetKey]HoldingEntry
	createdAt   time.Time
	lastUpdated time.Time
}

func NewPortfolio(owner string, initialCash Decimal) (*Portfolio, error) {
	if !initialCash.IsFinite() || initialCash.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInitialCash, initialCash.String())
	}

	now := time.Now().UTC()
	return &Portfolio{
		id:          uuid.New().String(),
		owner:       owner,
		cash:        initialCash,
		holdings:    make(map[AssetKey]HoldingEntry),
		createdAt:   now,
		lastUpdated: now,
	}, nil
}

func (p *Portfolio) ID() string {
	return p.id
}

func (p *Portfolio) Owner() string {
	return p.owner
}

func (p *Portfolio) CreatedAt() time.Time {
	return p.createdAt
}

func (p *Portfolio) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdated
}

func (p *Portfolio) Cash() Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// Holding returns a copy of the entry for key, if held.
func (p *Portfolio) Holding(key AssetKey) (HoldingEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.holdings[key]
	return h, ok
}

// Holdings returns a copy of all entries ordered by asset type then asset id.
func (p *Portfolio) Holdings() []HoldingEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedHoldingsLocked()
}

func (p *Portfolio) sortedHoldingsLocked() []HoldingEntry {
	entries := make([]HoldingEntry, 0, len(p.holdings))
	for _, h := range p.holdings {
		entries = append(entries, h)
	}
	slices.SortFunc(entries, func(a, b HoldingEntry) int {
		if c := cmp.Compare(a.AssetType, b.AssetType); c != 0 {
			return c
		}
		return cmp.Compare(a.AssetID, b.AssetID)
	})
	return entries
}

// ExecuteTrade books a fill at req.Price. Either the whole trade is applied or
// the portfolio is left untouched. An unknown side is a caller bug and panics.
func (p *Portfolio) ExecuteTrade(req TradeRequest) (*TradeReceipt, error) {
	if req.Side != SideBuy && req.Side != SideSell {
		panic(fmt.Sprintf("domain: unknown trade side %q", req.Side))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	total, err := req.Quantity.Mul(req.Price)
	if err != nil {
		return nil, tradeOutOfRange(req.Side, err)
	}

	key := req.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, held := p.holdings[key]

	var (
		cash  Decimal
		entry HoldingEntry
	)

	switch req.Side {
	case SideBuy:
		if p.cash.Cmp(total) < 0 {
			return nil, fmt.Errorf("%w: cost %s exceeds cash %s", ErrInsufficientCash, total, p.cash)
		}
		if cash, err = p.cash.Sub(total); err != nil {
			return nil, fmt.Errorf("debiting cash: %w", err)
		}
		if entry, err = mergeBuy(existing, held, req, total); err != nil {
			return nil, err
		}
	case SideSell:
		if !held || existing.Quantity.Cmp(req.Quantity) < 0 {
			have := Zero
			if held {
				have = existing.Quantity
			}
			return nil, fmt.Errorf("%w: selling %s %s, holding %s", ErrInsufficientHoldings, req.Quantity, key, have)
		}
		if cash, err = p.cash.Add(total); err != nil {
			return nil, tradeOutOfRange(req.Side, err)
		}
		entry = existing
		if entry.Quantity, err = existing.Quantity.Sub(req.Quantity); err != nil {
			return nil, fmt.Errorf("reducing holding: %w", err)
		}
	}

	// Commit.
	now := time.Now().UTC()
	p.cash = cash
	if entry.Quantity.IsZero() {
		delete(p.holdings, key)
	} else {
		p.holdings[key] = entry
	}
	p.lastUpdated = now

	return &TradeReceipt{
		ID:              uuid.New().String(),
		PortfolioID:     p.id,
		AssetID:         req.AssetID,
		AssetType:       req.AssetType,
		Symbol:          entry.Symbol,
		Name:            entry.Name,
		Side:            req.Side,
		Quantity:        req.Quantity,
		Price:           req.Price,
		Total:           total,
		HoldingQuantity: entry.Quantity,
		AverageBuyPrice: entry.AverageBuyPrice,
		Cash:            cash,
		ExecutedAt:      now,
	}, nil
}

// tradeOutOfRange reports an unrepresentable trade total. No cash balance can
// cover such a buy, and no holding can supply such a sell.
func tradeOutOfRange(side Side, err error) error {
	if side == SideBuy {
		return fmt.Errorf("%w: trade total %v", ErrInsufficientCash, err)
	}
	return fmt.Errorf("%w: trade total %v", ErrInvalidQuantity, err)
}

// mergeBuy returns the entry after buying req.Quantity for cost. The average
// buy price is volume weighted: (avg*qty + cost) / (qty + bought).
func mergeBuy(existing HoldingEntry, held bool, req TradeRequest, cost Decimal) (HoldingEntry, error) {
	if !held {
		return HoldingEntry{
			AssetID:         req.AssetID,
			AssetType:       req.AssetType,
			Symbol:          req.Symbol,
			Name:            req.Name,
			LogoURL:         req.LogoURL,
			Quantity:        req.Quantity,
			AverageBuyPrice: req.Price,
		}, nil
	}

	basis, err := existing.TotalCost()
	if err != nil {
		return existing, fmt.Errorf("computing cost basis: %w", err)
	}
	basis, err = basis.Add(cost)
	if err != nil {
		return existing, fmt.Errorf("computing cost basis: %w", err)
	}
	quantity, err := existing.Quantity.Add(req.Quantity)
	if err != nil {
		return existing, fmt.Errorf("increasing holding: %w", err)
	}
	avg, err := basis.Div(quantity)
	if err != nil {
		return existing, fmt.Errorf("averaging buy price: %w", err)
	}

	merged := existing
	merged.Quantity = quantity
	merged.AverageBuyPrice = avg
	if merged.Symbol == "" {
		merged.Symbol = req.Symbol
	}
	if merged.Name == "" {
		merged.Name = req.Name
	}
	if merged.LogoURL == "" {
		merged.LogoURL = req.LogoURL
	}
	return merged, nil
}
