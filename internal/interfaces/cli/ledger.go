package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// ErrNoLedger is returned when the ledger file has not been initialized.
var ErrNoLedger = errors.New("ledger file does not exist, run init first")

// ledgerFile is the on-disk form of an offline ledger.
type ledgerFile struct {
	Portfolio domain.PortfolioSnapshot `json:"portfolio"`
	Trades    []domain.TradeReceipt    `json:"trades"`
}

// Ledger is a portfolio plus its trade log, backed by a JSON file.
type Ledger struct {
	path      string
	Portfolio *domain.Portfolio
	Trades    []domain.TradeReceipt
}

func OpenLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoLedger, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	var lf ledgerFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("decoding ledger %s: %w", path, err)
	}

	p, err := domain.RestorePortfolio(lf.Portfolio)
	if err != nil {
		return nil, fmt.Errorf("decoding ledger %s: %w", path, err)
	}
	return &Ledger{path: path, Portfolio: p, Trades: lf.Trades}, nil
}

func NewLedger(path, owner string, cash domain.Decimal) (*Ledger, error) {
	p, err := domain.NewPortfolio(owner, cash)
	if err != nil {
		return nil, err
	}
	return &Ledger{path: path, Portfolio: p, Trades: []domain.TradeReceipt{}}, nil
}

// Save writes the ledger through a temporary file so a failed write never
// truncates the previous state.
func (l *Ledger) Save() error {
	lf := ledgerFile{Portfolio: l.Portfolio.Snapshot(), Trades: l.Trades}
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}
