package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/persistence/sqldb/migrations"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) Migrate(ctx context.Context, db *sql.DB) error {
	// goose has no go-ora driver, so the init script is run statement by statement.
	content, err := migrations.OracleFS.ReadFile("oracle/20250101000000_init.sql")
	if err != nil {
		return fmt.Errorf("reading migration file: %w", err)
	}

	for _, stmt := range strings.Split(string(content), "/") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// ORA-00955: name is already used by an existing object
			if !strings.Contains(err.Error(), "ORA-00955") {
				return fmt.Errorf("migrating: %s: %w", stmt, err)
			}
		}
	}
	return nil
}

func (d *OracleDialect) UpsertPortfolio(ctx context.Context, tx *sql.Tx, s *domain.PortfolioSnapshot) error {
	query := `MERGE INTO portfolios p
             USING (SELECT :1 as id_val FROM dual) src
             ON (p.id = src.id_val)
             WHEN MATCHED THEN
               UPDATE SET owner = :2, cash = :3, last_updated = :4
             WHEN NOT MATCHED THEN
               INSERT (id, owner, cash, created_at, last_updated)
               VALUES (:5, :6, :7, :8, :9)`

	_, err := tx.ExecContext(ctx, query,
		s.ID,          // 1 (src.id_val)
		s.Owner,       // 2 (UPDATE)
		s.Cash,        // 3
		s.LastUpdated, // 4
		s.ID,          // 5 (INSERT)
		s.Owner,       // 6
		s.Cash,        // 7
		s.CreatedAt,   // 8
		s.LastUpdated, // 9
	)
	return err
}

func (d *OracleDialect) InsertHolding(ctx context.Context, tx *sql.Tx, portfolioID string, h *domain.HoldingEntry) error {
	query := `INSERT INTO holdings (portfolio_id, asset_id, asset_type, symbol, name, logo_url, quantity, average_buy_price)
             VALUES (:1, :2, :3, :4, :5, :6, :7, :8)`

	_, err := tx.ExecContext(ctx, query,
		portfolioID, h.AssetID, string(h.AssetType), h.Symbol, h.Name, h.LogoURL, h.Quantity, h.AverageBuyPrice)
	return err
}

func (d *OracleDialect) InsertTrade(ctx context.Context, tx *sql.Tx, t *domain.TradeReceipt) error {
	// Insert-only MERGE keeps a retried append idempotent.
	query := `MERGE INTO trades t
             USING (SELECT :1 as id_val FROM dual) src
             ON (t.id = src.id_val)
             WHEN NOT MATCHED THEN
               INSERT (id, portfolio_id, asset_id, asset_type, symbol, name, side, quantity, price, total,
                       holding_quantity, average_buy_price, cash, executed_at)
               VALUES (:2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13, :14, :15)`

	_, err := tx.ExecContext(ctx, query,
		t.ID,                // 1
		t.ID,                // 2 (INSERT)
		t.PortfolioID,       // 3
		t.AssetID,           // 4
		string(t.AssetType), // 5
		t.Symbol,            // 6
		t.Name,              // 7
		string(t.Side),      // 8
		t.Quantity,          // 9
		t.Price,             // 10
		t.Total,             // 11
		t.HoldingQuantity,   // 12
		t.AverageBuyPrice,   // 13
		t.Cash,              // 14
		t.ExecutedAt,        // 15
	)
	return err
}
