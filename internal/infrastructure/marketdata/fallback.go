package marketdata

import (
	"context"
	"errors"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// Fallback prices through primary and hands assets primary does not support to secondary.
// Any other primary error is returned as is.
type Fallback struct {
	primary   MDataProvider
	secondary MDataProvider
}

func NewFallback(primary, secondary MDataProvider) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) GetQuote(ctx context.Context, asset domain.Asset) (*QuoteResult, error) {
	quote, err := f.primary.GetQuote(ctx, asset)
	if errors.Is(err, ErrUnsupportedAsset) {
		return f.secondary.GetQuote(ctx, asset)
	}
	return quote, err
}
