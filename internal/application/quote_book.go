package application

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

// Quote is the latest known market price of an asset.
type Quote struct {
	Asset     domain.AssetKey `json:"asset"`
	Symbol    string          `json:"symbol"`
	Price     domain.Decimal  `json:"price"`
	Currency  string          `json:"currency,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QuoteBook caches the latest quote per asset. Valuation reads prices from here so
// that it never waits on the network.
type QuoteBook struct {
	mu       sync.RWMutex
	quotes   map[domain.AssetKey]Quote
	fallback domain.PriceLookup
	now      func() time.Time
}

// NewQuoteBook creates an empty book. fallback, if not nil, answers Lookup for assets
// that have never been quoted.
func NewQuoteBook(fallback domain.PriceLookup) *QuoteBook {
	return &QuoteBook{
		quotes:   make(map[domain.AssetKey]Quote),
		fallback: fallback,
		now:      time.Now,
	}
}

func (b *QuoteBook) Set(q *marketdata.QuoteResult) {
	if q == nil || !q.Price.IsPositive() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[q.Asset] = Quote{
		Asset:     q.Asset,
		Symbol:    q.Symbol,
		Price:     q.Price,
		Currency:  q.Currency,
		UpdatedAt: b.now().UTC(),
	}
}

func (b *QuoteBook) Get(key domain.AssetKey) (Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[key]
	return q, ok
}

// Lookup satisfies domain.PriceLookup.
func (b *QuoteBook) Lookup(key domain.AssetKey) (domain.Decimal, bool) {
	if q, ok := b.Get(key); ok {
		return q.Price, true
	}
	if b.fallback != nil {
		return b.fallback(key)
	}
	return domain.Zero, false
}

// All returns every cached quote ordered by asset key.
func (b *QuoteBook) All() []Quote {
	b.mu.RLock()
	out := make([]Quote, 0, len(b.quotes))
	for _, q := range b.quotes {
		out = append(out, q)
	}
	b.mu.RUnlock()

	slices.SortFunc(out, func(a, c Quote) int {
		return cmp.Compare(a.Asset.String(), c.Asset.String())
	})
	return out
}
