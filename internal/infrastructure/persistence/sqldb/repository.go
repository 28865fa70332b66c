package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// Repository stores portfolios and their trade log. It satisfies both
// domain.PortfolioRepository and domain.TradeRepository.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.Dialect.Migrate(ctx, r.db.DB)
}

// Save writes the portfolio row and replaces its holdings in one transaction.
func (r *Repository) Save(ctx context.Context, p *domain.Portfolio) error {
	snap := p.Snapshot()

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.Dialect.UpsertPortfolio(ctx, tx, &snap); err != nil {
			slog.Error("Failed to save portfolio", "portfolio_id", snap.ID, "error", err)
			return fmt.Errorf("upsert portfolio: %w", err)
		}

		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM holdings WHERE portfolio_id = $1"), snap.ID); err != nil {
			return fmt.Errorf("clear holdings: %w", err)
		}

		for i := range snap.Holdings {
			if err := r.db.Dialect.InsertHolding(ctx, tx, snap.ID, &snap.Holdings[i]); err != nil {
				slog.Error("Failed to save holding", "portfolio_id", snap.ID, "asset", snap.Holdings[i].Key().String(), "error", err)
				return fmt.Errorf("insert holding: %w", err)
			}
		}
		return nil
	})
}

const selectPortfolios = `
        SELECT
            p.id, p.owner, p.cash, p.created_at, p.last_updated,
            h.asset_id, h.asset_type, h.symbol, h.name, h.logo_url, h.quantity, h.average_buy_price
        FROM portfolios p
        LEFT JOIN holdings h ON p.id = h.portfolio_id
    `

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	portfolios, err := r.query(ctx, selectPortfolios+" WHERE p.id = $1", id)
	if err != nil {
		slog.Error("Failed to find portfolio", "id", id, "error", err)
		return nil, err
	}
	if len(portfolios) == 0 {
		slog.Debug("Portfolio not found", "id", id)
		return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}
	return portfolios[0], nil
}

func (r *Repository) FindAll(ctx context.Context) ([]*domain.Portfolio, error) {
	return r.query(ctx, selectPortfolios+" ORDER BY p.created_at, p.id")
}

// query groups the joined rows per portfolio, keeping the order of first appearance.
func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying portfolios: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	snapshots := make(map[string]*domain.PortfolioSnapshot)
	var ids []string

	for rows.Next() {
		var (
			pID, pOwner            string
			pCash                  domain.Decimal
			pCreated, pLastUpdated time.Time
			hAssetID, hType, hSym  sql.NullString
			hName, hLogo           sql.NullString
			hQty, hAvgPrice        domain.Decimal
		)

		if err := rows.Scan(
			&pID, &pOwner, &pCash, &pCreated, &pLastUpdated,
			&hAssetID, &hType, &hSym, &hName, &hLogo, &hQty, &hAvgPrice,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		s, exists := snapshots[pID]
		if !exists {
			s = &domain.PortfolioSnapshot{
				ID:          pID,
				Owner:       pOwner,
				Cash:        pCash,
				Holdings:    []domain.HoldingEntry{},
				CreatedAt:   pCreated.UTC(),
				LastUpdated: pLastUpdated.UTC(),
			}
			snapshots[pID] = s
			ids = append(ids, pID)
		}

		if hAssetID.Valid {
			s.Holdings = append(s.Holdings, domain.HoldingEntry{
				AssetID:         hAssetID.String,
				AssetType:       domain.AssetType(hType.String),
				Symbol:          hSym.String,
				Name:            hName.String,
				LogoURL:         hLogo.String,
				Quantity:        hQty,
				AverageBuyPrice: hAvgPrice,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	portfolios := make([]*domain.Portfolio, 0, len(ids))
	for _, id := range ids {
		p, err := domain.RestorePortfolio(*snapshots[id])
		if err != nil {
			return nil, fmt.Errorf("restoring portfolio %s: %w", id, err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, nil
}

// Delete removes a portfolio with its holdings and trade log.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM trades WHERE portfolio_id = $1"), id); err != nil {
			return fmt.Errorf("failed to delete trades: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM holdings WHERE portfolio_id = $1"), id); err != nil {
			return fmt.Errorf("failed to delete holdings: %w", err)
		}

		res, err := tx.ExecContext(ctx, r.rebind("DELETE FROM portfolios WHERE id = $1"), id)
		if err != nil {
			return fmt.Errorf("failed to delete portfolio: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
		}
		return nil
	})
}

// Append records an executed trade.
func (r *Repository) Append(ctx context.Context, t *domain.TradeReceipt) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.Dialect.InsertTrade(ctx, tx, t); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		return nil
	})
}

// ListByPortfolio returns the trades of a portfolio in execution order.
func (r *Repository) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.TradeReceipt, error) {
	query := r.rebind(`
        SELECT id, portfolio_id, asset_id, asset_type, symbol, name, side, quantity, price, total,
               holding_quantity, average_buy_price, cash, executed_at
        FROM trades
        WHERE portfolio_id = $1
        ORDER BY seq
    `)

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	trades := make([]domain.TradeReceipt, 0)
	for rows.Next() {
		var (
			t               domain.TradeReceipt
			assetType, side string
			name            sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.PortfolioID, &t.AssetID, &assetType, &t.Symbol, &name, &side,
			&t.Quantity, &t.Price, &t.Total, &t.HoldingQuantity, &t.AverageBuyPrice, &t.Cash, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.AssetType = domain.AssetType(assetType)
		t.Side = domain.Side(side)
		t.Name = name.String
		t.ExecutedAt = t.ExecutedAt.UTC()
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *Repository) rebind(query string) string {
	if r.db.Dialect.Name() == "oracle" {
		for i := 1; i <= 10; i++ {
			query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), fmt.Sprintf(":%d", i))
		}
	}
	return query
}
