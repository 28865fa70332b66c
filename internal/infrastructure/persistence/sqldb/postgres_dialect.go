package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/persistence/sqldb/migrations"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.PostgresFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (d *PostgresDialect) UpsertPortfolio(ctx context.Context, tx *sql.Tx, s *domain.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolios (id, owner, cash, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			cash = EXCLUDED.cash,
			last_updated = EXCLUDED.last_updated
	`
	_, err := tx.ExecContext(ctx, query, s.ID, s.Owner, s.Cash, s.CreatedAt, s.LastUpdated)
	return err
}

func (d *PostgresDialect) InsertHolding(ctx context.Context, tx *sql.Tx, portfolioID string, h *domain.HoldingEntry) error {
	query := `
		INSERT INTO holdings (portfolio_id, asset_id, asset_type, symbol, name, logo_url, quantity, average_buy_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		portfolioID, h.AssetID, string(h.AssetType), h.Symbol, h.Name, h.LogoURL, h.Quantity, h.AverageBuyPrice)
	return err
}

func (d *PostgresDialect) InsertTrade(ctx context.Context, tx *sql.Tx, t *domain.TradeReceipt) error {
	query := `
		INSERT INTO trades (id, portfolio_id, asset_id, asset_type, symbol, name, side, quantity, price, total,
			holding_quantity, average_buy_price, cash, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.AssetID, string(t.AssetType), t.Symbol, t.Name, string(t.Side),
		t.Quantity, t.Price, t.Total, t.HoldingQuantity, t.AverageBuyPrice, t.Cash, t.ExecutedAt)
	return err
}
