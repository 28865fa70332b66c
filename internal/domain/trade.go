package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be a finite value greater than zero")
	ErrInvalidPrice         = errors.New("price must be a finite value greater than zero")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToLower(strings.TrimSpace(s))); side {
	case SideBuy, SideSell:
		return side, nil
	default:
		return "", fmt.Errorf("unknown trade side %q", s)
	}
}

// TradeRequest is what a trade initiator hands to the ledger. Price is the fill price.
type TradeRequest struct {
	AssetID   string    `json:"asset_id"`
	AssetType AssetType `json:"asset_type"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logo_url,omitempty"`
	Quantity  Decimal   `json:"quantity"`
	Price     Decimal   `json:"price"`
	Side      Side      `json:"side"`
}

func (r TradeRequest) Key() AssetKey {
	return AssetKey{ID: r.AssetID, Type: r.AssetType}
}

// Validate checks the numeric preconditions shared by both sides.
func (r TradeRequest) Validate() error {
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, r.Quantity.String())
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, r.Price.String())
	}
	return nil
}

// TradeReceipt reports the state of the position and the account right after a fill.
// HoldingQuantity is zero when a sell closed the position.
type TradeReceipt struct {
	ID              string    `json:"id"`
	PortfolioID     string    `json:"portfolio_id"`
	AssetID         string    `json:"asset_id"`
	AssetType       AssetType `json:"asset_type"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Side            Side      `json:"side"`
	Quantity        Decimal   `json:"quantity"`
	Price           Decimal   `json:"price"`
	Total           Decimal   `json:"total"`
	HoldingQuantity Decimal   `json:"holding_quantity"`
	AverageBuyPrice Decimal   `json:"average_buy_price"`
	Cash            Decimal   `json:"cash"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// PositionClosed reports whether the trade removed the holding entirely.
func (r TradeReceipt) PositionClosed() bool {
	return r.Side == SideSell && r.HoldingQuantity.IsZero()
}
