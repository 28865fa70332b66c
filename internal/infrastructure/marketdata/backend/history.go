package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

// Timeframes accepted by the backend's candle endpoint.
const (
	Timeframe5Min  = "5Min"
	Timeframe1Hour = "1Hour"
	Timeframe1Day  = "1Day"
	Timeframe1Week = "1Week"
)

var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp string         `json:"timestamp"`
	Open      domain.Decimal `json:"open"`
	High      domain.Decimal `json:"high"`
	Low       domain.Decimal `json:"low"`
	Close     domain.Decimal `json:"close"`
	Volume    domain.Decimal `json:"volume"`
}

type historyRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

type historyResponse struct {
	Data []historyBar `json:"data"`
}

type historyBar struct {
	Timestamp string      `json:"timestamp"`
	Open      json.Number `json:"open"`
	High      json.Number `json:"high"`
	Low       json.Number `json:"low"`
	Close     json.Number `json:"close"`
	Volume    json.Number `json:"volume"`
}

// GetHistory returns the candles of a stock for timeframe, oldest first as sent
// by the backend.
func (c *Client) GetHistory(ctx context.Context, asset domain.Asset, timeframe string) ([]Candle, error) {
	if asset.Type != domain.AssetTypeStock {
		return nil, fmt.Errorf("%w: backend history covers stocks only, got %s", marketdata.ErrUnsupportedAsset, asset.Key())
	}
	switch timeframe {
	case Timeframe5Min, Timeframe1Hour, Timeframe1Day, Timeframe1Week:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
	}

	var resp historyResponse
	if err := c.post(ctx, historyPath, historyRequest{Symbol: asset.Symbol, Timeframe: timeframe}, asset.Symbol, &resp); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(resp.Data))
	for i, bar := range resp.Data {
		candle, err := bar.candle()
		if err != nil {
			return nil, fmt.Errorf("failed to parse candle %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (b historyBar) candle() (Candle, error) {
	c := Candle{Timestamp: b.Timestamp}
	fields := []struct {
		dst *domain.Decimal
		src json.Number
	}{
		{&c.Open, b.Open},
		{&c.High, b.High},
		{&c.Low, b.Low},
		{&c.Close, b.Close},
		{&c.Volume, b.Volume},
	}
	for _, f := range fields {
		if f.src == "" {
			*f.dst = domain.Zero
			continue
		}
		d, err := domain.NewDecimalFromString(f.src.String())
		if err != nil {
			return Candle{}, err
		}
		*f.dst = d
	}
	return c, nil
}
