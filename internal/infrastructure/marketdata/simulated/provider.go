package simulated

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

const currency = "USD"

var minPrice = domain.MustDecimal("0.01")

// Provider is an offline market: every quote moves the last price of the asset by a
// random step of at most ±volatility, rounded to cents and never below 0.01.
// Assets start from the seed price returned by seeds.
type Provider struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	seeds      domain.PriceLookup
	prices     map[domain.AssetKey]domain.Decimal
	now        func() time.Time
}

// NewProvider creates a simulated market. A zero seed picks a time-based one.
func NewProvider(seeds domain.PriceLookup, volatility float64, seed int64) *Provider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if volatility < 0 {
		volatility = -volatility
	}
	return &Provider{
		rng:        rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		volatility: volatility,
		seeds:      seeds,
		prices:     make(map[domain.AssetKey]domain.Decimal),
		now:        time.Now,
	}
}

func (p *Provider) GetQuote(ctx context.Context, asset domain.Asset) (*marketdata.QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextLocked(asset)
}

// GetQuoteBatch advances every asset under a single lock, so a batch is one market tick.
func (p *Provider) GetQuoteBatch(ctx context.Context, assets []domain.Asset) []marketdata.QuoteBatchResult {
	results := make([]marketdata.QuoteBatchResult, 0, len(assets))

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			results = append(results, marketdata.QuoteBatchResult{Asset: asset.Key(), Error: err})
			continue
		}
		quote, err := p.nextLocked(asset)
		results = append(results, marketdata.QuoteBatchResult{Asset: asset.Key(), Quote: quote, Error: err})
	}
	return results
}

// Set pins the current price of an asset; the next quote walks from there.
func (p *Provider) Set(key domain.AssetKey, price domain.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[key] = price
}

func (p *Provider) nextLocked(asset domain.Asset) (*marketdata.QuoteResult, error) {
	key := asset.Key()

	last, ok := p.prices[key]
	if !ok {
		if last, ok = p.seeds(key); !ok || !last.IsPositive() {
			return nil, fmt.Errorf("%w: %s", marketdata.ErrQuoteNotFound, key)
		}
	}

	next, err := p.step(last)
	if err != nil {
		return nil, fmt.Errorf("simulating %s: %w", key, err)
	}
	p.prices[key] = next

	return &marketdata.QuoteResult{
		Asset:    key,
		Symbol:   asset.Symbol,
		Price:    next,
		Currency: currency,
		Time:     p.now().UTC().Format(time.RFC3339),
	}, nil
}

func (p *Provider) step(price domain.Decimal) (domain.Decimal, error) {
	change := (p.rng.Float64()*2 - 1) * p.volatility
	factor, err := domain.NewDecimalFromFloat(1 + change)
	if err != nil {
		return price, err
	}
	moved, err := price.Mul(factor)
	if err != nil {
		return price, err
	}
	if moved, err = moved.Round(2); err != nil {
		return price, err
	}
	if moved.Cmp(minPrice) < 0 {
		return minPrice, nil
	}
	return moved, nil
}
