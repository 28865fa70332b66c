package simulated

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

var (
	aapl = domain.NewAsset("AAPL", "AAPL", "Apple Inc.", domain.AssetTypeStock, "")
	ada  = domain.NewAsset("ADA", "ADA", "Cardano", domain.AssetTypeCrypto, "")
)

func seeds(key domain.AssetKey) (domain.Decimal, bool) {
	switch key {
	case aapl.Key():
		return domain.MustDecimal("170.34"), true
	case ada.Key():
		return domain.MustDecimal("0.01"), true
	}
	return domain.Zero, false
}

func TestProvider_GetQuote_StaysWithinVolatility(t *testing.T) {
	p := NewProvider(seeds, 0.02, 42)

	last := domain.MustDecimal("170.34")
	for i := 0; i < 50; i++ {
		quote, err := p.GetQuote(context.Background(), aapl)
		require.NoError(t, err)

		assert.Equal(t, "AAPL", quote.Symbol)
		assert.Equal(t, aapl.Key(), quote.Asset)
		assert.Equal(t, "USD", quote.Currency)

		lower, _ := last.Mul(domain.MustDecimal("0.979"))
		upper, _ := last.Mul(domain.MustDecimal("1.021"))
		assert.True(t, quote.Price.Cmp(lower) >= 0 && quote.Price.Cmp(upper) <= 0,
			"step %d: %s outside [%s, %s]", i, quote.Price, lower, upper)

		rounded, _ := quote.Price.Round(2)
		assert.True(t, rounded.Equal(quote.Price), "price must be rounded to cents")
		last = quote.Price
	}
}

func TestProvider_DeterministicWithSeed(t *testing.T) {
	a := NewProvider(seeds, 0.05, 7)
	b := NewProvider(seeds, 0.05, 7)

	for i := 0; i < 10; i++ {
		qa, err := a.GetQuote(context.Background(), aapl)
		require.NoError(t, err)
		qb, err := b.GetQuote(context.Background(), aapl)
		require.NoError(t, err)
		assert.True(t, qa.Price.Equal(qb.Price))
	}
}

func TestProvider_FloorsAtOneCent(t *testing.T) {
	p := NewProvider(seeds, 0.5, 3)

	for i := 0; i < 20; i++ {
		quote, err := p.GetQuote(context.Background(), ada)
		require.NoError(t, err)
		assert.True(t, quote.Price.Cmp(domain.MustDecimal("0.01")) >= 0)
	}
}

func TestProvider_ZeroVolatilityKeepsPrice(t *testing.T) {
	p := NewProvider(seeds, 0, 1)
	p.Set(aapl.Key(), domain.MustDecimal("145.79"))

	quote, err := p.GetQuote(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, "145.79", quote.Price.String())
}

func TestProvider_UnknownAsset(t *testing.T) {
	p := NewProvider(seeds, 0.02, 1)

	_, err := p.GetQuote(context.Background(), domain.NewAsset("XYZ", "XYZ", "", domain.AssetTypeStock, ""))
	assert.ErrorIs(t, err, marketdata.ErrQuoteNotFound)
}

func TestProvider_CancelledContext(t *testing.T) {
	p := NewProvider(seeds, 0.02, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetQuote(ctx, aapl)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_GetQuoteBatch(t *testing.T) {
	p := NewProvider(seeds, 0.02, 1)
	unknown := domain.NewAsset("XYZ", "XYZ", "", domain.AssetTypeStock, "")

	var _ marketdata.BatchProvider = p
	results := p.GetQuoteBatch(context.Background(), []domain.Asset{aapl, unknown, ada})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Error)
	assert.NotNil(t, results[0].Quote)
	assert.ErrorIs(t, results[1].Error, marketdata.ErrQuoteNotFound)
	assert.Nil(t, results[1].Quote)
	assert.Equal(t, ada.Key(), results[2].Asset)
	assert.NoError(t, results[2].Error)
}
