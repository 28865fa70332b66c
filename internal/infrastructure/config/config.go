package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

const (
	MarketDataProviderSimulated  = "simulated"
	MarketDataProviderFinnhub    = "finnhub"
	MarketDataProviderTwelveData = "twelvedata"
	MarketDataProviderBackend    = "backend"

	DBDriverMemory   = "memory"
	DBDriverPostgres = "postgres"
	DBDriverOracle   = "oracle"
)

type Config struct {
	ServerPort string
	ServerHost string
	LogLevel   string

	DBDriver string
	DBDSN    string

	MarketDataProvider   string
	FinnhubAPIKey        string
	TwelveDataAPIKey     string
	BackendBaseURL       string
	PriceRefreshInterval time.Duration

	SimulatedVolatility float64
	SimulatedSeed       int64

	InitialCash      domain.Decimal
	AssetCatalogFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:         getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:         getEnvOrDefault("SERVER_HOST", "localhost"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		DBDriver:           getEnvOrDefault("DB_DRIVER", DBDriverMemory),
		DBDSN:              os.Getenv("DB_DSN"),
		MarketDataProvider: getEnvOrDefault("MARKET_DATA_PROVIDER", MarketDataProviderSimulated),
		FinnhubAPIKey:      os.Getenv("FINNHUB_API_KEY"),
		TwelveDataAPIKey:   os.Getenv("TWELVE_DATA_API_KEY"),
		BackendBaseURL:     getEnvOrDefault("BACKEND_BASE_URL", "http://localhost:5000"),
		AssetCatalogFile:   os.Getenv("ASSET_CATALOG_FILE"),
	}

	switch cfg.DBDriver {
	case DBDriverMemory:
	case DBDriverPostgres, DBDriverOracle:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN environment variable is required for %s driver", cfg.DBDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s (supported: memory, postgres, oracle)", cfg.DBDriver)
	}

	switch cfg.MarketDataProvider {
	case MarketDataProviderSimulated, MarketDataProviderBackend:
	case MarketDataProviderFinnhub:
		if cfg.FinnhubAPIKey == "" {
			return nil, fmt.Errorf("FINNHUB_API_KEY environment variable is required for finnhub provider")
		}
	case MarketDataProviderTwelveData:
		if cfg.TwelveDataAPIKey == "" {
			return nil, fmt.Errorf("TWELVE_DATA_API_KEY environment variable is required for twelvedata provider")
		}
	default:
		return nil, fmt.Errorf("unsupported MARKET_DATA_PROVIDER: %s (supported: simulated, finnhub, twelvedata, backend)", cfg.MarketDataProvider)
	}

	var err error
	cfg.PriceRefreshInterval, err = time.ParseDuration(getEnvOrDefault("PRICE_REFRESH_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_INTERVAL: %w", err)
	}
	if cfg.PriceRefreshInterval <= 0 {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_INTERVAL: must be positive, got %s", cfg.PriceRefreshInterval)
	}

	cfg.InitialCash, err = domain.NewDecimalFromString(getEnvOrDefault("INITIAL_CASH", "100000.00"))
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if !cfg.InitialCash.IsFinite() || cfg.InitialCash.Sign() < 0 {
		return nil, fmt.Errorf("invalid INITIAL_CASH: must be a finite value >= 0, got %s", cfg.InitialCash)
	}

	cfg.SimulatedVolatility, err = strconv.ParseFloat(getEnvOrDefault("SIMULATED_VOLATILITY", "0.02"), 64)
	if err != nil || cfg.SimulatedVolatility < 0 || cfg.SimulatedVolatility >= 1 {
		return nil, fmt.Errorf("invalid SIMULATED_VOLATILITY: expected a fraction in [0, 1), got %q", os.Getenv("SIMULATED_VOLATILITY"))
	}

	cfg.SimulatedSeed, err = strconv.ParseInt(getEnvOrDefault("SIMULATED_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATED_SEED: %w", err)
	}

	return cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
