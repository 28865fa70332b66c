package sqldb

import (
	"context"
	"database/sql"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// Dialect holds the statements whose syntax differs between databases.
// Plain SELECT/DELETE statements are written once and rebound by the Repository.
type Dialect interface {
	Name() string
	Migrate(ctx context.Context, db *sql.DB) error
	UpsertPortfolio(ctx context.Context, tx *sql.Tx, s *domain.PortfolioSnapshot) error
	InsertHolding(ctx context.Context, tx *sql.Tx, portfolioID string, h *domain.HoldingEntry) error
	InsertTrade(ctx context.Context, tx *sql.Tx, t *domain.TradeReceipt) error
}
