package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmanzanog/trading-simulator/internal/application"
	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/catalog"
)

// --- Mock Service ---

type MockTradingService struct {
	openSessionFunc        func(ctx context.Context, owner string) (*domain.PortfolioSnapshot, error)
	closeSessionFunc       func(ctx context.Context, id string) error
	listPortfoliosFunc     func(ctx context.Context) ([]domain.PortfolioSnapshot, error)
	valuateFunc            func(ctx context.Context, id string) (*domain.PortfolioValuation, error)
	executeTradeFunc       func(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error)
	executeTradesBatchFunc func(ctx context.Context, id string, cmds []application.TradeCommand) (*application.TradeBatchResult, error)
	listTradesFunc         func(ctx context.Context, id string) ([]domain.TradeReceipt, error)
	assetsFunc             func(ctx context.Context) []application.AssetQuote
	refreshPricesFunc      func(ctx context.Context) error
}

var errNotImplemented = fmt.Errorf("not implemented")

func (m *MockTradingService) OpenSession(ctx context.Context, owner string) (*domain.PortfolioSnapshot, error) {
	if m.openSessionFunc != nil {
		return m.openSessionFunc(ctx, owner)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) CloseSession(ctx context.Context, id string) error {
	if m.closeSessionFunc != nil {
		return m.closeSessionFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockTradingService) ListPortfolios(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	if m.listPortfoliosFunc != nil {
		return m.listPortfoliosFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) Valuate(ctx context.Context, id string) (*domain.PortfolioValuation, error) {
	if m.valuateFunc != nil {
		return m.valuateFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) ExecuteTrade(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error) {
	if m.executeTradeFunc != nil {
		return m.executeTradeFunc(ctx, id, cmd)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) ExecuteTradesBatch(ctx context.Context, id string, cmds []application.TradeCommand) (*application.TradeBatchResult, error) {
	if m.executeTradesBatchFunc != nil {
		return m.executeTradesBatchFunc(ctx, id, cmds)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) ListTrades(ctx context.Context, id string) ([]domain.TradeReceipt, error) {
	if m.listTradesFunc != nil {
		return m.listTradesFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockTradingService) Assets(ctx context.Context) []application.AssetQuote {
	if m.assetsFunc != nil {
		return m.assetsFunc(ctx)
	}
	return nil
}

func (m *MockTradingService) RefreshPrices(ctx context.Context) error {
	if m.refreshPricesFunc != nil {
		return m.refreshPricesFunc(ctx)
	}
	return errNotImplemented
}

// --- Test Setup ---

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, handler)
	return router
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	return resp.Error
}

func sampleSnapshot(owner string) *domain.PortfolioSnapshot {
	now := time.Now().UTC()
	return &domain.PortfolioSnapshot{
		ID:          "p-1",
		Owner:       owner,
		Cash:        domain.MustDecimal("100000.00"),
		Holdings:    []domain.HoldingEntry{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// --- Session Tests ---

func TestHandler_OpenSession(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantOwner string
		wantCode  int
	}{
		{"with owner", `{"owner":"alice"}`, "alice", http.StatusCreated},
		{"without body", "", "", http.StatusCreated},
		{"malformed body", `{"owner":`, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner string
			mockService := &MockTradingService{
				openSessionFunc: func(ctx context.Context, owner string) (*domain.PortfolioSnapshot, error) {
					gotOwner = owner
					return sampleSnapshot(owner), nil
				},
			}
			router := setupRouter(NewHandler(mockService))

			w := perform(router, http.MethodPost, "/api/v1/sessions", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				return
			}
			if gotOwner != tt.wantOwner {
				t.Errorf("expected owner %q, got %q", tt.wantOwner, gotOwner)
			}

			var resp domain.PortfolioSnapshot
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if !resp.Cash.Equal(domain.MustDecimal("100000")) {
				t.Errorf("expected cash 100000, got %s", resp.Cash)
			}
		})
	}
}

func TestHandler_CloseSession(t *testing.T) {
	mockService := &MockTradingService{
		closeSessionFunc: func(ctx context.Context, id string) error {
			if id != "p-1" {
				return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
			}
			return nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodDelete, "/api/v1/sessions/p-1", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}

	w = perform(router, http.MethodDelete, "/api/v1/sessions/other", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

// --- Portfolio Tests ---

func TestHandler_ListPortfolios(t *testing.T) {
	mockService := &MockTradingService{
		listPortfoliosFunc: func(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
			return []domain.PortfolioSnapshot{*sampleSnapshot("a"), *sampleSnapshot("b")}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodGet, "/api/v1/portfolios", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp []domain.PortfolioSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("expected 2 portfolios, got %d", len(resp))
	}
}

func TestHandler_GetPortfolio(t *testing.T) {
	mockService := &MockTradingService{
		valuateFunc: func(ctx context.Context, id string) (*domain.PortfolioValuation, error) {
			if id != "p-1" {
				return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
			}
			return &domain.PortfolioValuation{
				PortfolioID:       id,
				Cash:              domain.MustDecimal("98542.10"),
				TotalAccountValue: domain.MustDecimal("100142.10"),
				TotalProfitLoss:   domain.MustDecimal("142.10"),
				Holdings:          []domain.HoldingValuation{},
			}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodGet, "/api/v1/portfolios/p-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["total_account_value"] != 100142.10 {
		t.Errorf("expected total_account_value 100142.10, got %v", resp["total_account_value"])
	}

	w = perform(router, http.MethodGet, "/api/v1/portfolios/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

// --- Trade Tests ---

func TestHandler_ExecuteTrade_Success(t *testing.T) {
	var got application.TradeCommand
	mockService := &MockTradingService{
		executeTradeFunc: func(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error) {
			got = cmd
			return &domain.TradeReceipt{
				ID:          "t-1",
				PortfolioID: id,
				AssetID:     cmd.AssetID,
				AssetType:   cmd.AssetType,
				Side:        cmd.Side,
				Quantity:    cmd.Quantity,
				Price:       *cmd.Price,
				Cash:        domain.MustDecimal("98542.10"),
			}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	body := `{"asset_id":"AAPL","asset_type":"stock","side":"buy","quantity":10,"price":"145.79"}`
	w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if got.AssetID != "AAPL" || got.AssetType != domain.AssetTypeStock || got.Side != domain.SideBuy {
		t.Errorf("unexpected command: %+v", got)
	}
	if got.Price == nil || !got.Price.Equal(domain.MustDecimal("145.79")) {
		t.Errorf("expected price 145.79, got %v", got.Price)
	}

	var resp domain.TradeReceipt
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Cash.Equal(domain.MustDecimal("98542.10")) {
		t.Errorf("expected cash 98542.10, got %s", resp.Cash)
	}
}

func TestHandler_ExecuteTrade_MarketPriceWhenOmitted(t *testing.T) {
	var got application.TradeCommand
	mockService := &MockTradingService{
		executeTradeFunc: func(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error) {
			got = cmd
			return &domain.TradeReceipt{ID: "t-1"}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades", `{"asset_id":"BTC","asset_type":"crypto","side":"sell","quantity":"0.5"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if got.Price != nil {
		t.Errorf("expected nil price, got %s", got.Price)
	}
}

func TestHandler_ExecuteTrade_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid quantity", fmt.Errorf("%w: 0", domain.ErrInvalidQuantity), http.StatusBadRequest},
		{"invalid price", fmt.Errorf("%w: -1", domain.ErrInvalidPrice), http.StatusBadRequest},
		{"invalid request", fmt.Errorf("%w: unknown asset type", application.ErrInvalidTradeRequest), http.StatusBadRequest},
		{"insufficient cash", fmt.Errorf("%w: cost exceeds cash", domain.ErrInsufficientCash), http.StatusUnprocessableEntity},
		{"insufficient holdings", fmt.Errorf("%w: holding 0", domain.ErrInsufficientHoldings), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("%w: p-9", domain.ErrPortfolioNotFound), http.StatusNotFound},
		{"quote unavailable", fmt.Errorf("%w for stock:AAPL", application.ErrQuoteUnavailable), http.StatusBadGateway},
		{"storage failure", errors.New("failed to save portfolio: disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockTradingService{
				executeTradeFunc: func(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error) {
					return nil, tt.err
				},
			}
			router := setupRouter(NewHandler(mockService))

			w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades", `{"asset_id":"AAPL","asset_type":"stock","side":"buy","quantity":1}`)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if msg := decodeError(t, w); msg != tt.err.Error() {
				t.Errorf("expected error %q, got %q", tt.err.Error(), msg)
			}
		})
	}
}

func TestHandler_ExecuteTrade_InvalidBody(t *testing.T) {
	mockService := &MockTradingService{}
	router := setupRouter(NewHandler(mockService))

	bodies := []string{
		`not json`,
		`{"asset_type":"stock","side":"buy","quantity":1}`,
		`{"asset_id":"AAPL","side":"buy","quantity":1}`,
		`{"asset_id":"AAPL","asset_type":"stock","quantity":1}`,
		`{"asset_id":"AAPL","asset_type":"stock","side":"buy","quantity":"ten"}`,
	}
	for _, body := range bodies {
		w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}
}

func TestHandler_ExecuteTradesBatch(t *testing.T) {
	var gotCount int
	mockService := &MockTradingService{
		executeTradesBatchFunc: func(ctx context.Context, id string, cmds []application.TradeCommand) (*application.TradeBatchResult, error) {
			gotCount = len(cmds)
			return &application.TradeBatchResult{
				Successful: []application.TradeOutcome{{Index: 0, AssetID: cmds[0].AssetID, Receipt: &domain.TradeReceipt{ID: "t-1"}}},
				Failed:     []application.TradeOutcome{{Index: 1, AssetID: cmds[1].AssetID, Error: "insufficient holdings"}},
			}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	body := `{"trades":[
		{"asset_id":"AAPL","asset_type":"stock","side":"buy","quantity":1,"price":100},
		{"asset_id":"MSFT","asset_type":"stock","side":"sell","quantity":1}
	]}`
	w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades/batch", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if gotCount != 2 {
		t.Errorf("expected 2 commands, got %d", gotCount)
	}

	var resp application.TradeBatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Successful) != 1 || len(resp.Failed) != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d/%d", len(resp.Successful), len(resp.Failed))
	}
	if resp.Failed[0].Index != 1 {
		t.Errorf("expected failed index 1, got %d", resp.Failed[0].Index)
	}
}

func TestHandler_ExecuteTradesBatch_Invalid(t *testing.T) {
	mockService := &MockTradingService{
		executeTradesBatchFunc: func(ctx context.Context, id string, cmds []application.TradeCommand) (*application.TradeBatchResult, error) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
		},
	}
	router := setupRouter(NewHandler(mockService))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"empty list", `{"trades":[]}`, http.StatusBadRequest},
		{"missing field in item", `{"trades":[{"asset_type":"stock","side":"buy","quantity":1}]}`, http.StatusBadRequest},
		{"unknown portfolio", `{"trades":[{"asset_id":"AAPL","asset_type":"stock","side":"buy","quantity":1}]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(router, http.MethodPost, "/api/v1/portfolios/p-1/trades/batch", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestHandler_ListTrades(t *testing.T) {
	mockService := &MockTradingService{
		listTradesFunc: func(ctx context.Context, id string) ([]domain.TradeReceipt, error) {
			return []domain.TradeReceipt{{ID: "t-1", PortfolioID: id}, {ID: "t-2", PortfolioID: id}}, nil
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodGet, "/api/v1/portfolios/p-1/trades", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp []domain.TradeReceipt
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 2 || resp[1].ID != "t-2" {
		t.Errorf("unexpected trades: %+v", resp)
	}
}

// --- Assets / Prices Tests ---

func TestHandler_ListAssets(t *testing.T) {
	mockService := &MockTradingService{
		assetsFunc: func(ctx context.Context) []application.AssetQuote {
			entries := catalog.Default().List()
			return []application.AssetQuote{{Entry: entries[0], Price: entries[0].SeedPrice, PriceAvailable: true}}
		},
	}
	router := setupRouter(NewHandler(mockService))

	w := perform(router, http.MethodGet, "/api/v1/assets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0]["price_available"] != true {
		t.Errorf("unexpected assets: %v", resp)
	}
}

func TestHandler_RefreshPrices(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router := setupRouter(NewHandler(&MockTradingService{
			refreshPricesFunc: func(ctx context.Context) error { return nil },
		}))
		w := perform(router, http.MethodPost, "/api/v1/prices/refresh", "")
		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		router := setupRouter(NewHandler(&MockTradingService{
			refreshPricesFunc: func(ctx context.Context) error { return errors.New("rate limited") },
		}))
		w := perform(router, http.MethodPost, "/api/v1/prices/refresh", "")
		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, w.Code)
		}
		if msg := decodeError(t, w); msg != "rate limited" {
			t.Errorf("unexpected error message %q", msg)
		}
	})
}

func TestHealth(t *testing.T) {
	router := setupRouter(NewHandler(&MockTradingService{}))

	w := perform(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}
