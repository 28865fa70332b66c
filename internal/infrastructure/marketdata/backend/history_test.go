package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
)

func TestGetHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/stock-history" {
			t.Errorf("Expected POST /stock-history, got %s %s", r.Method, r.URL.Path)
		}
		var body historyRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Unexpected request body: %v", err)
		}
		if body.Symbol != "AAPL" || body.Timeframe != Timeframe1Day {
			t.Errorf("Unexpected request %+v", body)
		}
		_, _ = w.Write([]byte(`{"data": [
			{"timestamp": "2024-01-02T00:00:00Z", "open": 185.64, "high": 186.95, "low": 183.89, "close": 185.2, "volume": 82488700},
			{"timestamp": "2024-01-03T00:00:00Z", "open": 184.22, "high": 185.88, "low": 183.43, "close": 184.25, "volume": 58414500}
		]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	candles, err := client.GetHistory(context.Background(), aapl, Timeframe1Day)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	first := candles[0]
	if first.Timestamp != "2024-01-02T00:00:00Z" {
		t.Errorf("Unexpected timestamp %s", first.Timestamp)
	}
	if !first.Close.Equal(domain.MustDecimal("185.2")) || !first.High.Equal(domain.MustDecimal("186.95")) {
		t.Errorf("Unexpected prices %+v", first)
	}
	if !first.Volume.Equal(domain.MustDecimal("82488700")) {
		t.Errorf("Unexpected volume %s", first.Volume)
	}
}

func TestGetHistory_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "No data found"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)

	tests := []struct {
		name      string
		asset     domain.Asset
		timeframe string
		wantErr   error
	}{
		{"not found", aapl, Timeframe5Min, marketdata.ErrQuoteNotFound},
		{"bad timeframe", aapl, "1Month", ErrInvalidTimeframe},
		{"crypto", domain.NewAsset("BTC", "BTC", "Bitcoin", domain.AssetTypeCrypto, ""), Timeframe1Day, marketdata.ErrUnsupportedAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetHistory(context.Background(), tt.asset, tt.timeframe)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
