package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

// TradeOutcome is the result of one command in a batch. Index is its position in the request.
type TradeOutcome struct {
	Index   int                  `json:"index"`
	AssetID string               `json:"asset_id"`
	Receipt *domain.TradeReceipt `json:"receipt,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type TradeBatchResult struct {
	Successful []TradeOutcome `json:"successful"`
	Failed     []TradeOutcome `json:"failed"`
}

// ExecuteTradesBatch applies the commands in request order against one portfolio.
// Missing prices are quoted up front, through the batch API when the provider has one
// and with concurrent calls otherwise. A failing command does not stop the rest;
// the resulting state is persisted once.
func (s *TradingService) ExecuteTradesBatch(ctx context.Context, portfolioID string, cmds []TradeCommand) (*TradeBatchResult, error) {
	result := &TradeBatchResult{
		Successful: make([]TradeOutcome, 0),
		Failed:     make([]TradeOutcome, 0),
	}

	sess, err := s.session(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return result, nil
	}

	assets := make([]domain.Asset, len(cmds))
	valid := make([]bool, len(cmds))
	var toQuote []domain.Asset
	queued := make(map[domain.AssetKey]bool)

	for i, cmd := range cmds {
		asset, err := s.resolveAsset(cmd)
		if err != nil {
			result.Failed = append(result.Failed, TradeOutcome{Index: i, AssetID: cmd.AssetID, Error: err.Error()})
			continue
		}
		assets[i], valid[i] = asset, true
		if cmd.Price == nil && !queued[asset.Key()] {
			queued[asset.Key()] = true
			toQuote = append(toQuote, asset)
		}
	}

	quotes, quoteErrors := s.fetchQuotes(ctx, toQuote)
	for _, q := range quotes {
		s.quotes.Set(q)
	}

	if err := sess.lock(); err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	before := sess.portfolio.Snapshot()
	receipts := make([]*domain.TradeReceipt, 0, len(cmds))
	var applied []TradeOutcome

	for i, cmd := range cmds {
		if !valid[i] {
			continue
		}
		asset := assets[i]

		price := domain.Zero
		if cmd.Price != nil {
			price = *cmd.Price
		} else if q, ok := quotes[asset.Key()]; ok {
			price = q.Price
		} else {
			result.Failed = append(result.Failed, TradeOutcome{
				Index:   i,
				AssetID: asset.ID,
				Error:   fmt.Sprintf("%v for %s: %v", ErrQuoteUnavailable, asset.Key(), quoteErrors[asset.Key()]),
			})
			continue
		}

		receipt, err := sess.portfolio.ExecuteTrade(tradeRequest(asset, cmd, price))
		if err != nil {
			result.Failed = append(result.Failed, TradeOutcome{Index: i, AssetID: asset.ID, Error: err.Error()})
			continue
		}
		receipts = append(receipts, receipt)
		applied = append(applied, TradeOutcome{Index: i, AssetID: asset.ID, Receipt: receipt})
	}

	if len(receipts) > 0 {
		if err := s.persist(ctx, sess.portfolio, before, receipts); err != nil {
			slog.ErrorContext(ctx, "Failed to save portfolio after batch trade", "portfolio_id", portfolioID, "error", err)
			for _, o := range applied {
				result.Failed = append(result.Failed, TradeOutcome{Index: o.Index, AssetID: o.AssetID, Error: err.Error()})
			}
			applied = nil
		}
	}
	result.Successful = append(result.Successful, applied...)

	slog.InfoContext(ctx, "Batch trade processed",
		"portfolio_id", portfolioID,
		"successful", len(result.Successful),
		"failed", len(result.Failed),
	)
	return result, nil
}

// fetchQuotes prices assets, preferring the provider's batch API.
func (s *TradingService) fetchQuotes(ctx context.Context, assets []domain.Asset) (map[domain.AssetKey]*marketdata.QuoteResult, map[domain.AssetKey]error) {
	if len(assets) == 0 {
		return map[domain.AssetKey]*marketdata.QuoteResult{}, map[domain.AssetKey]error{}
	}
	if batchProvider, ok := s.marketData.(marketdata.BatchProvider); ok {
		slog.DebugContext(ctx, "Using batch provider for quotes", "count", len(assets))
		return s.getQuotesBatch(ctx, batchProvider, assets)
	}
	slog.DebugContext(ctx, "Batch provider not available, using concurrent quotes", "count", len(assets))
	return s.getQuotesConcurrent(ctx, assets)
}

// getQuotesBatch uses the batch provider to get quotes.
func (s *TradingService) getQuotesBatch(ctx context.Context, provider marketdata.BatchProvider, assets []domain.Asset) (map[domain.AssetKey]*marketdata.QuoteResult, map[domain.AssetKey]error) {
	quotes := make(map[domain.AssetKey]*marketdata.QuoteResult)
	errors := make(map[domain.AssetKey]error)

	for _, r := range provider.GetQuoteBatch(ctx, assets) {
		if r.Error != nil {
			errors[r.Asset] = r.Error
		} else {
			quotes[r.Asset] = r.Quote
		}
	}

	return quotes, errors
}

// getQuotesConcurrent gets quotes concurrently using goroutines and channels.
// This is used as a fallback when the provider doesn't support batch operations.
func (s *TradingService) getQuotesConcurrent(ctx context.Context, assets []domain.Asset) (map[domain.AssetKey]*marketdata.QuoteResult, map[domain.AssetKey]error) {
	quotes := make(map[domain.AssetKey]*marketdata.QuoteResult)
	errors := make(map[domain.AssetKey]error)

	type quoteResult struct {
		key   domain.AssetKey
		quote *marketdata.QuoteResult
		err   error
	}

	resultChan := make(chan quoteResult, len(assets))
	var wg sync.WaitGroup

	for _, asset := range assets {
		wg.Add(1)
		go func(asset domain.Asset) {
			defer wg.Done()

			quote, err := s.marketData.GetQuote(ctx, asset)
			resultChan <- quoteResult{key: asset.Key(), quote: quote, err: err}
		}(asset)
	}

	// Close channel when all goroutines complete
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		if r.err != nil {
			errors[r.key] = r.err
		} else {
			quotes[r.key] = r.quote
		}
	}

	return quotes, errors
}
