package domain

import (
	"fmt"
	"time"
)

// PriceLookup returns the current market price for a holding. ok=false means no
// price is known; that entry is valued at zero and the rest are still valued.
type PriceLookup func(key AssetKey) (price Decimal, ok bool)

type HoldingValuation struct {
	HoldingEntry
	CurrentPrice      Decimal `json:"current_price"`
	PriceAvailable    bool    `json:"price_available"`
	CurrentValue      Decimal `json:"current_value"`
	TotalCost         Decimal `json:"total_cost"`
	ProfitLoss        Decimal `json:"profit_loss"`
	ProfitLossPercent Decimal `json:"profit_loss_percent"`
}

type PortfolioValuation struct {
	PortfolioID            string             `json:"portfolio_id"`
	Owner                  string             `json:"owner"`
	Cash                   Decimal            `json:"cash"`
	HoldingsValue          Decimal            `json:"holdings_value"`
	TotalAccountValue      Decimal            `json:"total_account_value"`
	TotalCost              Decimal            `json:"total_cost"`
	TotalProfitLoss        Decimal            `json:"total_profit_loss"`
	TotalProfitLossPercent Decimal            `json:"total_profit_loss_percent"`
	Holdings               []HoldingValuation `json:"holdings"`
	LastUpdated            time.Time          `json:"last_updated"`
}

var hundred = NewDecimalFromInt(100)

// Valuate prices every holding through lookup, calling it exactly once per entry.
// It only takes the read lock, so it never observes half of a trade.
func (p *Portfolio) Valuate(lookup PriceLookup) (*PortfolioValuation, error) {
	p.mu.RLock()
	cash := p.cash
	entries := p.sortedHoldingsLocked()
	lastUpdated := p.lastUpdated
	p.mu.RUnlock()

	v := &PortfolioValuation{
		PortfolioID:   p.id,
		Owner:         p.owner,
		Cash:          cash,
		HoldingsValue: Zero,
		TotalCost:     Zero,
		Holdings:      make([]HoldingValuation, 0, len(entries)),
		LastUpdated:   lastUpdated,
	}

	for _, entry := range entries {
		hv, err := valuateHolding(entry, lookup)
		if err != nil {
			return nil, fmt.Errorf("valuating %s: %w", entry.Key(), err)
		}
		if v.HoldingsValue, err = v.HoldingsValue.Add(hv.CurrentValue); err != nil {
			return nil, err
		}
		if v.TotalCost, err = v.TotalCost.Add(hv.TotalCost); err != nil {
			return nil, err
		}
		v.Holdings = append(v.Holdings, hv)
	}

	var err error
	if v.TotalAccountValue, err = cash.Add(v.HoldingsValue); err != nil {
		return nil, err
	}
	if v.TotalProfitLoss, err = v.HoldingsValue.Sub(v.TotalCost); err != nil {
		return nil, err
	}
	if v.TotalProfitLossPercent, err = percentOf(v.TotalProfitLoss, v.TotalCost); err != nil {
		return nil, err
	}
	return v, nil
}

func valuateHolding(entry HoldingEntry, lookup PriceLookup) (HoldingValuation, error) {
	hv := HoldingValuation{HoldingEntry: entry, CurrentPrice: Zero}

	if price, ok := lookup(entry.Key()); ok && price.IsFinite() && price.Sign() >= 0 {
		hv.CurrentPrice = price
		hv.PriceAvailable = true
	}

	var err error
	if hv.CurrentValue, err = entry.Quantity.Mul(hv.CurrentPrice); err != nil {
		return hv, err
	}
	if hv.TotalCost, err = entry.TotalCost(); err != nil {
		return hv, err
	}
	if hv.ProfitLoss, err = hv.CurrentValue.Sub(hv.TotalCost); err != nil {
		return hv, err
	}
	if hv.ProfitLossPercent, err = percentOf(hv.ProfitLoss, hv.TotalCost); err != nil {
		return hv, err
	}
	return hv, nil
}

// percentOf returns part/whole*100, or zero when whole is not positive.
func percentOf(part, whole Decimal) (Decimal, error) {
	if whole.Sign() <= 0 {
		return Zero, nil
	}
	ratio, err := part.Div(whole)
	if err != nil {
		return Zero, err
	}
	return ratio.Mul(hundred)
}
