package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"github.com/jmanzanog/trading-simulator/internal/infrastructure/catalog"
)

const defaultLedgerFile = "portfolio.json"

// Env is what the commands read from and write to.
type Env struct {
	Out     io.Writer
	Err     io.Writer
	Catalog *catalog.Catalog
}

// Register adds the ledger commands to c.
func Register(c *subcommands.Commander, env Env) {
	c.Register(&initCmd{env: env}, "ledger")
	c.Register(&showCmd{env: env}, "ledger")
	c.Register(&tradesCmd{env: env}, "ledger")

	c.Register(&tradeCmd{env: env, side: domain.SideBuy}, "trading")
	c.Register(&tradeCmd{env: env, side: domain.SideSell}, "trading")

	c.Register(&assetsCmd{env: env}, "reference")
}

func (e Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(e.Err, "Error:", err)
	return subcommands.ExitFailure
}

// --- init ---

type initCmd struct {
	env   Env
	file  string
	owner string
	cash  string
	force bool
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create a new ledger funded with starting cash" }
func (*initCmd) Usage() string {
	return `ledger init [-file <path>] [-owner <name>] [-cash <amount>] [-force]

  Creates an empty ledger. An existing ledger is kept unless -force is given.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", defaultLedgerFile, "Path to the ledger file.")
	f.StringVar(&c.owner, "owner", "default", "Owner recorded in the ledger.")
	f.StringVar(&c.cash, "cash", "100000.00", "Starting cash balance.")
	f.BoolVar(&c.force, "force", false, "Overwrite an existing ledger.")
}

func (c *initCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cash, err := domain.NewDecimalFromString(c.cash)
	if err != nil {
		return c.env.fail(err)
	}

	if !c.force {
		if _, err := os.Stat(c.file); err == nil {
			return c.env.fail(fmt.Errorf("%s already exists, use -force to overwrite", c.file))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return c.env.fail(err)
		}
	}

	ledger, err := NewLedger(c.file, c.owner, cash)
	if err != nil {
		return c.env.fail(err)
	}
	if err := ledger.Save(); err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "Created ledger %s for %s with %s\n", c.file, c.owner, formatMoney(ledger.Portfolio.Cash()))
	return subcommands.ExitSuccess
}

// --- buy / sell ---

type tradeCmd struct {
	env       Env
	side      domain.Side
	file      string
	id        string
	assetType string
	symbol    string
	name      string
	qty       string
	price     string
}

func (c *tradeCmd) Name() string { return string(c.side) }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("%s an asset at a given or catalog price", c.side)
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`ledger %s -id <asset> [-type stock|crypto] -qty <quantity> [-price <price>] [-file <path>]

  Without -price the catalog seed price is used.
`, c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", defaultLedgerFile, "Path to the ledger file.")
	f.StringVar(&c.id, "id", "", "Asset identifier, e.g. AAPL or BTC.")
	f.StringVar(&c.assetType, "type", string(domain.AssetTypeStock), "Asset type: stock or crypto.")
	f.StringVar(&c.symbol, "symbol", "", "Display symbol. Defaults to the catalog symbol or the id.")
	f.StringVar(&c.name, "name", "", "Display name. Defaults to the catalog name.")
	f.StringVar(&c.qty, "qty", "", "Quantity to trade.")
	f.StringVar(&c.price, "price", "", "Fill price per unit.")
}

func (c *tradeCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" || c.qty == "" {
		fmt.Fprintln(c.env.Err, "Error: -id and -qty are required")
		return subcommands.ExitUsageError
	}

	req, err := c.request()
	if err != nil {
		return c.env.fail(err)
	}

	ledger, err := OpenLedger(c.file)
	if err != nil {
		return c.env.fail(err)
	}

	receipt, err := ledger.Portfolio.ExecuteTrade(req)
	if err != nil {
		return c.env.fail(err)
	}
	ledger.Trades = append(ledger.Trades, *receipt)

	if err := ledger.Save(); err != nil {
		return c.env.fail(err)
	}
	if err := renderReceipt(c.env.Out, receipt); err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *tradeCmd) request() (domain.TradeRequest, error) {
	assetType, err := domain.ParseAssetType(c.assetType)
	if err != nil {
		return domain.TradeRequest{}, err
	}
	qty, err := domain.NewDecimalFromString(c.qty)
	if err != nil {
		return domain.TradeRequest{}, fmt.Errorf("invalid -qty: %w", err)
	}

	asset := domain.NewAsset(c.id, c.symbol, c.name, assetType, "")
	entry, known := c.env.Catalog.Lookup(asset.Key())
	if known {
		if asset.Symbol == "" {
			asset.Symbol = entry.Symbol
		}
		if asset.Name == "" {
			asset.Name = entry.Name
		}
		asset.LogoURL = entry.LogoURL
	}
	if asset.Symbol == "" {
		asset.Symbol = asset.ID
	}

	var price domain.Decimal
	switch {
	case c.price != "":
		if price, err = domain.NewDecimalFromString(c.price); err != nil {
			return domain.TradeRequest{}, fmt.Errorf("invalid -price: %w", err)
		}
	case known:
		price = entry.SeedPrice
	default:
		return domain.TradeRequest{}, fmt.Errorf("no price for %s: pass -price", asset.Key())
	}

	return domain.TradeRequest{
		AssetID:   asset.ID,
		AssetType: asset.Type,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		LogoURL:   asset.LogoURL,
		Quantity:  qty,
		Price:     price,
		Side:      c.side,
	}, nil
}

// --- show ---

// priceFlag collects repeated -price flags of the form ID=VALUE or TYPE:ID=VALUE.
type priceFlag map[string]domain.Decimal

func (p priceFlag) String() string {
	keys := make([]string, 0, len(p))
	for k, v := range p {
		keys = append(keys, k+"="+v.String())
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (p priceFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected ID=VALUE, got %q", v)
	}
	d, err := domain.NewDecimalFromString(value)
	if err != nil {
		return err
	}
	p[strings.ToUpper(key)] = d
	return nil
}

// lookup prefers an exact TYPE:ID override, then a bare ID override.
func (p priceFlag) lookup(key domain.AssetKey) (domain.Decimal, bool) {
	if d, ok := p[strings.ToUpper(key.String())]; ok {
		return d, true
	}
	d, ok := p[strings.ToUpper(key.ID)]
	return d, ok
}

type showCmd struct {
	env    Env
	file   string
	prices priceFlag
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "value the ledger and print holdings with profit and loss" }
func (*showCmd) Usage() string {
	return `ledger show [-file <path>] [-price ID=VALUE]...

  Values every holding at the -price overrides, falling back to catalog seed prices.
  Holdings without any price are shown as n/a and valued at zero.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	c.prices = priceFlag{}
	f.StringVar(&c.file, "file", defaultLedgerFile, "Path to the ledger file.")
	f.Var(c.prices, "price", "Current price override, ID=VALUE or TYPE:ID=VALUE. Repeatable.")
}

func (c *showCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := OpenLedger(c.file)
	if err != nil {
		return c.env.fail(err)
	}

	valuation, err := ledger.Portfolio.Valuate(func(key domain.AssetKey) (domain.Decimal, bool) {
		if d, ok := c.prices.lookup(key); ok {
			return d, true
		}
		return c.env.Catalog.SeedPrice(key)
	})
	if err != nil {
		return c.env.fail(err)
	}

	if err := renderValuation(c.env.Out, valuation); err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

// --- trades ---

type tradesCmd struct {
	env  Env
	file string
}

func (*tradesCmd) Name() string     { return "trades" }
func (*tradesCmd) Synopsis() string { return "list the trade log of the ledger" }
func (*tradesCmd) Usage() string {
	return `ledger trades [-file <path>]
`
}

func (c *tradesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", defaultLedgerFile, "Path to the ledger file.")
}

func (c *tradesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := OpenLedger(c.file)
	if err != nil {
		return c.env.fail(err)
	}
	if err := renderTrades(c.env.Out, ledger.Trades); err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

// --- assets ---

type assetsCmd struct {
	env Env
}

func (*assetsCmd) Name() string     { return "assets" }
func (*assetsCmd) Synopsis() string { return "list the tradeable assets and their seed prices" }
func (*assetsCmd) Usage() string {
	return `ledger assets
`
}

func (*assetsCmd) SetFlags(*flag.FlagSet) {}

func (c *assetsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	for _, e := range c.env.Catalog.List() {
		fmt.Fprintf(c.env.Out, "%-7s %-6s %-16s %s\n", e.ID, e.Type, e.Name, formatMoney(e.SeedPrice))
	}
	return subcommands.ExitSuccess
}
