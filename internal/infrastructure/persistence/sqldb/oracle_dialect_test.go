package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

func TestOracleDialect_UpsertPortfolio_QueryGeneration(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	dialect := &OracleDialect{}

	p, err := domain.NewPortfolio("tester", domain.MustDecimal("100000"))
	assert.NoError(t, err)
	snap := p.Snapshot()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectExec(`MERGE INTO portfolios p`).
		WithArgs(
			snap.ID,          // 1
			snap.Owner,       // 2
			snap.Cash,        // 3
			sqlmock.AnyArg(), // 4 (LastUpdated)
			snap.ID,          // 5
			snap.Owner,       // 6
			snap.Cash,        // 7
			sqlmock.AnyArg(), // 8 (CreatedAt)
			sqlmock.AnyArg(), // 9 (LastUpdated)
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = dialect.UpsertPortfolio(context.Background(), tx, &snap)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleDialect_InsertHolding_QueryGeneration(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	dialect := &OracleDialect{}
	h := domain.HoldingEntry{
		AssetID:         "AAPL",
		AssetType:       domain.AssetTypeStock,
		Symbol:          "AAPL",
		Name:            "Apple Inc.",
		Quantity:        domain.MustDecimal("10"),
		AverageBuyPrice: domain.MustDecimal("145.79"),
	}

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO holdings").
		WithArgs("port-1", "AAPL", "stock", "AAPL", "Apple Inc.", "", h.Quantity, h.AverageBuyPrice).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = dialect.InsertHolding(context.Background(), tx, "port-1", &h)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleDialect_InsertTrade_QueryGeneration(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	dialect := &OracleDialect{}
	trade := sampleTrade("port-1", time.Now())

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectExec("MERGE INTO trades t").
		WithArgs(
			trade.ID,              // 1
			trade.ID,              // 2
			trade.PortfolioID,     // 3
			trade.AssetID,         // 4
			"crypto",              // 5
			trade.Symbol,          // 6
			trade.Name,            // 7
			"buy",                 // 8
			trade.Quantity,        // 9
			trade.Price,           // 10
			trade.Total,           // 11
			trade.HoldingQuantity, // 12
			trade.AverageBuyPrice, // 13
			trade.Cash,            // 14
			sqlmock.AnyArg(),      // 15 (ExecutedAt)
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = dialect.InsertTrade(context.Background(), tx, &trade)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func sampleTrade(portfolioID string, at time.Time) domain.TradeReceipt {
	return domain.TradeReceipt{
		ID:              "trade-1",
		PortfolioID:     portfolioID,
		AssetID:         "BTC",
		AssetType:       domain.AssetTypeCrypto,
		Symbol:          "BTC",
		Name:            "Bitcoin",
		Side:            domain.SideBuy,
		Quantity:        domain.MustDecimal("0.5"),
		Price:           domain.MustDecimal("40000"),
		Total:           domain.MustDecimal("20000"),
		HoldingQuantity: domain.MustDecimal("0.5"),
		AverageBuyPrice: domain.MustDecimal("40000"),
		Cash:            domain.MustDecimal("80000"),
		ExecutedAt:      at.UTC(),
	}
}
