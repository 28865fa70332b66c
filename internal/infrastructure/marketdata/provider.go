package marketdata

import (
	"context"
	"errors"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

var (
	ErrQuoteNotFound    = errors.New("quote not found")
	ErrUnsupportedAsset = errors.New("asset type not supported by provider")
)

type QuoteResult struct {
	Asset    domain.AssetKey
	Symbol   string
	Price    domain.Decimal
	Currency string
	Time     string
}

type MDataProvider interface {
	GetQuote(ctx context.Context, asset domain.Asset) (*QuoteResult, error)
}

// BatchProvider is implemented by providers that can price many assets in one call.
type BatchProvider interface {
	GetQuoteBatch(ctx context.Context, assets []domain.Asset) []QuoteBatchResult
}

// QuoteBatchResult holds the outcome for one asset of a batch request.
// Exactly one of Quote and Error is set.
type QuoteBatchResult struct {
	Asset domain.AssetKey
	Quote *QuoteResult
	Error error
}
