package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/sijms/go-ora/v2"

	"github.com/jmanzanog/trading-simulator/internal/application"
	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/catalog"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/config"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata/backend"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata/finnhub"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata/simulated"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/marketdata/twelvedata"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/persistence/memory"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/persistence/sqldb"
	httpHandler "github.com/jmanzanog/trading-simulator/internal/interfaces/http"
)

// setupLogger configures and returns a structured logger with source information
func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// storage bundles the repositories and the handle that owns them.
type storage struct {
	Portfolios domain.PortfolioRepository
	Trades     domain.TradeRepository
	Close      func() error
}

// initializeDatabase sets up the configured store and runs migrations
func initializeDatabase(cfg *config.Config) (*storage, error) {
	var db *sql.DB
	var dialect sqldb.Dialect
	var err error

	switch cfg.DBDriver {
	case config.DBDriverMemory:
		return &storage{
			Portfolios: memory.NewPortfolioRepository(),
			Trades:     memory.NewTradeRepository(),
			Close:      func() error { return nil },
		}, nil
	case config.DBDriverPostgres:
		db, err = sql.Open("pgx", cfg.DBDSN)
		dialect = &sqldb.PostgresDialect{}
	case config.DBDriverOracle:
		db, err = sql.Open("oracle", cfg.DBDSN)
		dialect = &sqldb.OracleDialect{}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := sqldb.NewRepository(sqldb.New(db, dialect))
	if err := repo.AutoMigrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &storage{Portfolios: repo, Trades: repo, Close: db.Close}, nil
}

// createMarketDataClient creates the market data provider based on configuration.
// The simulated market prices every catalog asset; the remote providers are
// stock-only, so the backend provider falls back to it for anything else.
func createMarketDataClient(cfg *config.Config, assets *catalog.Catalog) marketdata.MDataProvider {
	sim := simulated.NewProvider(assets.SeedPrice, cfg.SimulatedVolatility, cfg.SimulatedSeed)

	switch cfg.MarketDataProvider {
	case config.MarketDataProviderFinnhub:
		return finnhub.NewClient(cfg.FinnhubAPIKey)
	case config.MarketDataProviderTwelveData:
		return twelvedata.NewClient(cfg.TwelveDataAPIKey)
	case config.MarketDataProviderBackend:
		return marketdata.NewFallback(backend.NewClientWithBaseURL(cfg.BackendBaseURL), sim)
	default:
		return sim
	}
}

// buildServer creates and configures the HTTP server with all routes and handlers
func buildServer(cfg *config.Config, service httpHandler.TradingService) *http.Server {
	router := gin.Default()
	handler := httpHandler.NewHandler(service)
	httpHandler.SetupRoutes(router, handler)

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// App wraps the application components for easier testing
type App struct {
	Server        *http.Server
	PriceUpdater  *application.PriceUpdater
	CancelContext context.CancelFunc
	CloseStorage  func() error
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application...")

	a.PriceUpdater.Stop()
	a.CancelContext()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if a.CloseStorage != nil {
		if err := a.CloseStorage(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// run contains the main application logic without os.Exit calls
func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.LogLevel)

	assets, err := catalog.Load(cfg.AssetCatalogFile)
	if err != nil {
		return fmt.Errorf("failed to load asset catalog: %w", err)
	}

	marketDataClient := createMarketDataClient(cfg, assets)
	slog.Info("Using market data provider", "provider", cfg.MarketDataProvider)

	store, err := initializeDatabase(cfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	slog.Info("Using storage", "driver", cfg.DBDriver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := application.NewTradingService(ctx, store.Portfolios, store.Trades, marketDataClient,
		assets, application.NewQuoteBook(assets.SeedPrice), cfg.InitialCash)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create trading service: %w", err)
	}

	priceUpdater := application.NewPriceUpdater(service, cfg.PriceRefreshInterval)
	go priceUpdater.Start(ctx)

	server := buildServer(cfg, service)

	app := &App{
		Server:        server,
		PriceUpdater:  priceUpdater,
		CancelContext: cancel,
		CloseStorage:  store.Close,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "host", cfg.ServerHost, "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("Server exited gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
