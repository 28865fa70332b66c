package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"
	quotePath      = "/quote"
	cryptoExchange = "BINANCE"
	cryptoQuote    = "USDT"
)

// Client implements the MDataProvider interface using Finnhub API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Finnhub API client.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a new Finnhub client with a custom HTTP client (for testing).
func NewClientWithHTTPClient(apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// quoteResponse represents the Finnhub quote response.
type quoteResponse struct {
	Current       float64 `json:"c"`  // Current price
	Change        float64 `json:"d"`  // Change
	PercentChange float64 `json:"dp"` // Percent change
	High          float64 `json:"h"`  // High price of the day
	Low           float64 `json:"l"`  // Low price of the day
	Open          float64 `json:"o"`  // Open price of the day
	PreviousClose float64 `json:"pc"` // Previous close price
	Timestamp     int64   `json:"t"`  // Timestamp
}

// ProviderSymbol maps an asset to the symbol Finnhub quotes it under.
// Crypto is priced against USDT on Binance, e.g. BTC -> BINANCE:BTCUSDT.
func ProviderSymbol(asset domain.Asset) (string, error) {
	switch asset.Type {
	case domain.AssetTypeStock:
		return asset.Symbol, nil
	case domain.AssetTypeCrypto:
		return cryptoExchange + ":" + asset.Symbol + cryptoQuote, nil
	default:
		return "", fmt.Errorf("%w: %s", marketdata.ErrUnsupportedAsset, asset.Type)
	}
}

// GetQuote retrieves the current quote for an asset.
func (c *Client) GetQuote(ctx context.Context, asset domain.Asset) (*marketdata.QuoteResult, error) {
	symbol, err := ProviderSymbol(asset)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, quotePath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "symbol", symbol)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var quoteResp quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Finnhub returns 0 for all fields if symbol not found
	if quoteResp.Current == 0 && quoteResp.PreviousClose == 0 && quoteResp.Timestamp == 0 {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrQuoteNotFound, symbol)
	}

	price, err := domain.NewDecimalFromFloat(quoteResp.Current)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	return &marketdata.QuoteResult{
		Asset:    asset.Key(),
		Symbol:   asset.Symbol,
		Price:    price,
		Currency: "USD",
		Time:     time.Unix(quoteResp.Timestamp, 0).UTC().Format(time.RFC3339),
	}, nil
}
