package twelvedata

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
	defaultBaseURL = "https://api.twelvedata.com"
	quotePath      = "/quote"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type quoteResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// ProviderSymbol returns the Twelve Data symbol; crypto pairs are quoted in USD (BTC/USD).
func ProviderSymbol(asset domain.Asset) (string, error) {
	switch asset.Type {
	case domain.AssetTypeStock:
		return asset.Symbol, nil
	case domain.AssetTypeCrypto:
		return asset.Symbol + "/USD", nil
	default:
		return "", fmt.Errorf("%w: %s", marketdata.ErrUnsupportedAsset, asset.Type)
	}
}

func (c *Client) GetQuote(ctx context.Context, asset domain.Asset) (*marketdata.QuoteResult, error) {
	symbol, err := ProviderSymbol(asset)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("apikey", c.apiKey)

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

	if quoteResp.Status == "error" {
		return nil, fmt.Errorf("quote request failed for symbol %s: %s", symbol, quoteResp.Message)
	}

	if quoteResp.Close == "" {
		return nil, fmt.Errorf("%w: no price data for %s", marketdata.ErrQuoteNotFound, symbol)
	}

	price, err := domain.NewDecimalFromString(quoteResp.Close)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	currency := quoteResp.Currency
	if currency == "" {
		currency = "USD"
	}

	return &marketdata.QuoteResult{
		Asset:    asset.Key(),
		Symbol:   asset.Symbol,
		Price:    price,
		Currency: currency,
		Time:     quoteResp.Datetime,
	}, nil
}
