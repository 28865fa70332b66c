package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "http://localhost:5000"
	quotePath      = "/stock-quote"
	historyPath    = "/stock-history"
)

// Client implements the MDataProvider interface against the dashboard backend,
// a small Flask service that proxies a brokerage data API. It only quotes stocks.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a backend client with default settings.
func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

// NewClientWithBaseURL creates a new client with a custom base URL.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client (for testing).
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type quoteRequest struct {
	Symbol string `json:"symbol"`
}

type quoteResponse struct {
	Symbol        string   `json:"symbol"`
	CompanyName   string   `json:"company_name"`
	CurrentPrice  *float64 `json:"current_price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"change_percent"`
}

// errorResponse covers both Flask ({"error"}) and FastAPI ({"detail"}) error bodies.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}

// GetQuote retrieves the current quote for a stock.
func (c *Client) GetQuote(ctx context.Context, asset domain.Asset) (*marketdata.QuoteResult, error) {
	if asset.Type != domain.AssetTypeStock {
		return nil, fmt.Errorf("%w: backend quotes stocks only, got %s", marketdata.ErrUnsupportedAsset, asset.Key())
	}

	var quoteResp quoteResponse
	if err := c.post(ctx, quotePath, quoteRequest{Symbol: asset.Symbol}, asset.Symbol, &quoteResp); err != nil {
		return nil, err
	}

	if quoteResp.CurrentPrice == nil {
		return nil, fmt.Errorf("%w: no price data for %s", marketdata.ErrQuoteNotFound, asset.Symbol)
	}

	price, err := domain.NewDecimalFromFloat(*quoteResp.CurrentPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	return &marketdata.QuoteResult{
		Asset:    asset.Key(),
		Symbol:   asset.Symbol,
		Price:    price,
		Currency: "USD",
		Time:     c.now().UTC().Format(time.RFC3339),
	}, nil
}

// post sends body as JSON and decodes a 200 answer into out. A 404 is reported
// as ErrQuoteNotFound for symbol.
func (c *Client) post(ctx context.Context, path string, body any, symbol string, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "url", reqURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp errorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.message() != "" {
			msg = errResp.message()
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %s", marketdata.ErrQuoteNotFound, symbol, msg)
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
