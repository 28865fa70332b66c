package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/catalog"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

var (
	ErrInvalidTradeRequest = errors.New("invalid trade request")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
)

// TradeCommand is a trade as submitted by a client. A nil Price means "fill at the
// current market price"; Symbol and Name are filled from the catalog when empty.
type TradeCommand struct {
	AssetID   string           `json:"asset_id"`
	AssetType domain.AssetType `json:"asset_type"`
	Symbol    string           `json:"symbol,omitempty"`
	Name      string           `json:"name,omitempty"`
	Side      domain.Side      `json:"side"`
	Quantity  domain.Decimal   `json:"quantity"`
	Price     *domain.Decimal  `json:"price,omitempty"`
}

// AssetQuote is a catalog entry with its latest price.
type AssetQuote struct {
	catalog.Entry
	Price          domain.Decimal `json:"price"`
	PriceAvailable bool           `json:"price_available"`
}

// session owns one live portfolio. mu serializes the trade-persist-rollback
// sequence so a rollback never discards another caller's trade. closed is set
// under mu once the session has been discarded; no save may follow it.
type session struct {
	mu        sync.Mutex
	portfolio *domain.Portfolio
	closed    bool
}

// lock acquires the session for a mutation, failing when it was closed while
// the caller was waiting.
func (sess *session) lock() error {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, sess.portfolio.ID())
	}
	return nil
}

type TradingService struct {
	repo        domain.PortfolioRepository
	trades      domain.TradeRepository
	marketData  marketdata.MDataProvider
	catalog     *catalog.Catalog
	quotes      *QuoteBook
	initialCash domain.Decimal

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewTradingService restores every persisted portfolio into a live session.
func NewTradingService(
	ctx context.Context,
	repo domain.PortfolioRepository,
	trades domain.TradeRepository,
	marketData marketdata.MDataProvider,
	assets *catalog.Catalog,
	quotes *QuoteBook,
	initialCash domain.Decimal,
) (*TradingService, error) {
	if !initialCash.IsFinite() || initialCash.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInitialCash, initialCash)
	}

	existing, err := repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolios: %w", err)
	}

	s := &TradingService{
		repo:        repo,
		trades:      trades,
		marketData:  marketData,
		catalog:     assets,
		quotes:      quotes,
		initialCash: initialCash,
		sessions:    make(map[string]*session, len(existing)),
	}
	for _, p := range existing {
		s.sessions[p.ID()] = &session{portfolio: p}
	}
	slog.InfoContext(ctx, "Trading service ready", "restored_portfolios", len(existing))
	return s, nil
}

func (s *TradingService) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}
	return sess, nil
}

// OpenSession starts a new ledger funded with the configured initial cash.
func (s *TradingService) OpenSession(ctx context.Context, owner string) (*domain.PortfolioSnapshot, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = "default"
	}

	p, err := domain.NewPortfolio(owner, s.initialCash)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.mu.Lock()
	s.sessions[p.ID()] = &session{portfolio: p}
	s.mu.Unlock()

	slog.InfoContext(ctx, "Session opened", "portfolio_id", p.ID(), "owner", owner, "cash", s.initialCash.String())
	snap := p.Snapshot()
	return &snap, nil
}

// CloseSession discards a ledger and its persisted state.
func (s *TradingService) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	// Wait for an in-flight trade to finish persisting before deleting its rows.
	sess.mu.Lock()
	sess.closed = true
	err := s.repo.Delete(ctx, id)
	sess.mu.Unlock()

	if err != nil && !errors.Is(err, domain.ErrPortfolioNotFound) {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	slog.InfoContext(ctx, "Session closed", "portfolio_id", id)
	return nil
}

func (s *TradingService) GetPortfolio(_ context.Context, id string) (*domain.PortfolioSnapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	snap := sess.portfolio.Snapshot()
	return &snap, nil
}

// ListPortfolios returns every live ledger, oldest first.
func (s *TradingService) ListPortfolios(_ context.Context) ([]domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	out := make([]domain.PortfolioSnapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.portfolio.Snapshot())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.PortfolioSnapshot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ExecuteTrade fills cmd against the portfolio and persists the result. When the
// new state cannot be stored the portfolio is rolled back to its pre-trade state.
func (s *TradingService) ExecuteTrade(ctx context.Context, portfolioID string, cmd TradeCommand) (*domain.TradeReceipt, error) {
	sess, err := s.session(portfolioID)
	if err != nil {
		return nil, err
	}

	asset, err := s.resolveAsset(cmd)
	if err != nil {
		return nil, err
	}

	price, err := s.fillPrice(ctx, asset, cmd.Price)
	if err != nil {
		return nil, err
	}

	if err := sess.lock(); err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	before := sess.portfolio.Snapshot()
	receipt, err := sess.portfolio.ExecuteTrade(tradeRequest(asset, cmd, price))
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, sess.portfolio, before, []*domain.TradeReceipt{receipt}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Trade executed",
		"portfolio_id", portfolioID,
		"side", receipt.Side,
		"asset", asset.Key().String(),
		"quantity", receipt.Quantity.String(),
		"price", receipt.Price.String(),
		"cash", receipt.Cash.String(),
	)
	return receipt, nil
}

// persist stores the portfolio and then the receipts. On a failed save the live
// portfolio is restored to before.
func (s *TradingService) persist(ctx context.Context, p *domain.Portfolio, before domain.PortfolioSnapshot, receipts []*domain.TradeReceipt) error {
	if err := s.repo.Save(ctx, p); err != nil {
		if restoreErr := p.Restore(before); restoreErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back portfolio", "portfolio_id", p.ID(), "error", restoreErr)
		}
		return fmt.Errorf("failed to save portfolio: %w", err)
	}

	for _, r := range receipts {
		if err := s.trades.Append(ctx, r); err != nil {
			// The ledger itself is consistent; only the history is missing an entry.
			slog.ErrorContext(ctx, "Failed to append trade to log", "portfolio_id", p.ID(), "trade_id", r.ID, "error", err)
		}
	}
	return nil
}

func (s *TradingService) resolveAsset(cmd TradeCommand) (domain.Asset, error) {
	if strings.TrimSpace(cmd.AssetID) == "" {
		return domain.Asset{}, fmt.Errorf("%w: asset_id is required", ErrInvalidTradeRequest)
	}
	assetType, err := domain.ParseAssetType(string(cmd.AssetType))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %v", ErrInvalidTradeRequest, err)
	}
	if _, err := domain.ParseSide(string(cmd.Side)); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %v", ErrInvalidTradeRequest, err)
	}

	asset := domain.NewAsset(strings.TrimSpace(cmd.AssetID), cmd.Symbol, cmd.Name, assetType, "")
	if entry, ok := s.catalog.Lookup(asset.Key()); ok {
		if asset.Symbol == "" {
			asset.Symbol = entry.Symbol
		}
		if asset.Name == "" {
			asset.Name = entry.Name
		}
		asset.LogoURL = entry.LogoURL
	}
	if asset.Symbol == "" {
		asset.Symbol = asset.ID
	}
	return asset, nil
}

func (s *TradingService) fillPrice(ctx context.Context, asset domain.Asset, requested *domain.Decimal) (domain.Decimal, error) {
	if requested != nil {
		return *requested, nil
	}
	quote, err := s.marketData.GetQuote(ctx, asset)
	if err != nil {
		return domain.Zero, fmt.Errorf("%w for %s: %v", ErrQuoteUnavailable, asset.Key(), err)
	}
	s.quotes.Set(quote)
	return quote.Price, nil
}

func tradeRequest(asset domain.Asset, cmd TradeCommand, price domain.Decimal) domain.TradeRequest {
	side, _ := domain.ParseSide(string(cmd.Side))
	return domain.TradeRequest{
		AssetID:   asset.ID,
		AssetType: asset.Type,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		LogoURL:   asset.LogoURL,
		Quantity:  cmd.Quantity,
		Price:     price,
		Side:      side,
	}
}

// Valuate prices the portfolio from the quote book.
func (s *TradingService) Valuate(_ context.Context, portfolioID string) (*domain.PortfolioValuation, error) {
	sess, err := s.session(portfolioID)
	if err != nil {
		return nil, err
	}
	v, err := sess.portfolio.Valuate(s.quotes.Lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to valuate portfolio: %w", err)
	}
	return v, nil
}

// ListTrades returns the trade log of a portfolio, oldest first.
func (s *TradingService) ListTrades(ctx context.Context, portfolioID string) ([]domain.TradeReceipt, error) {
	if _, err := s.session(portfolioID); err != nil {
		return nil, err
	}
	trades, err := s.trades.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// Assets lists the catalog with the latest known price of each entry.
func (s *TradingService) Assets(_ context.Context) []AssetQuote {
	entries := s.catalog.List()
	out := make([]AssetQuote, 0, len(entries))
	for _, e := range entries {
		price, ok := s.quotes.Lookup(e.Key())
		out = append(out, AssetQuote{Entry: e, Price: price, PriceAvailable: ok})
	}
	return out
}

// RefreshPrices quotes every catalog asset and every held asset. Assets that fail
// keep their previous quote; the failures are returned joined.
func (s *TradingService) RefreshPrices(ctx context.Context) error {
	assets := s.trackedAssets()
	if len(assets) == 0 {
		return nil
	}

	quotes, failures := s.fetchQuotes(ctx, assets)
	for _, q := range quotes {
		s.quotes.Set(q)
	}

	errs := make([]error, 0, len(failures))
	for key, err := range failures {
		errs = append(errs, fmt.Errorf("failed to get quote for %s: %w", key, err))
	}
	slog.DebugContext(ctx, "Quotes refreshed", "updated", len(quotes), "failed", len(failures))
	return errors.Join(errs...)
}

func (s *TradingService) trackedAssets() []domain.Asset {
	seen := make(map[domain.AssetKey]bool)
	var assets []domain.Asset
	for _, a := range s.catalog.Assets() {
		seen[a.Key()] = true
		assets = append(assets, a)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		for _, h := range sess.portfolio.Holdings() {
			if seen[h.Key()] {
				continue
			}
			seen[h.Key()] = true
			assets = append(assets, domain.NewAsset(h.AssetID, h.Symbol, h.Name, h.AssetType, h.LogoURL))
		}
	}
	return assets
}
