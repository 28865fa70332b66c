package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmanzanog/trading-simulator/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed assets.yaml
var defaultAssets []byte

var ErrInvalidCatalog = errors.New("invalid asset catalog")

// Entry is a tradeable asset plus the price it opens at.
type Entry struct {
	domain.Asset
	SeedPrice domain.Decimal `json:"seed_price"`
}

type fileEntry struct {
	ID        string `yaml:"id"`
	Symbol    string `yaml:"symbol"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	SeedPrice string `yaml:"seed_price"`
	LogoURL   string `yaml:"logo_url"`
}

type file struct {
	Assets []fileEntry `yaml:"assets"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
	index   map[domain.AssetKey]int
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultAssets)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded assets: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset catalog %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Assets) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInvalidCatalog)
	}

	c := &Catalog{
		entries: make([]Entry, 0, len(f.Assets)),
		index:   make(map[domain.AssetKey]int, len(f.Assets)),
	}
	for i, fe := range f.Assets {
		entry, err := fe.toEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: asset #%d: %v", ErrInvalidCatalog, i+1, err)
		}
		key := entry.Key()
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrInvalidCatalog, key)
		}
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, entry)
	}
	return c, nil
}

func (fe fileEntry) toEntry() (Entry, error) {
	assetType, err := domain.ParseAssetType(fe.Type)
	if err != nil {
		return Entry{}, err
	}
	symbol := strings.TrimSpace(fe.Symbol)
	id := strings.TrimSpace(fe.ID)
	if id == "" {
		id = symbol
	}
	asset := domain.NewAsset(id, symbol, fe.Name, assetType, fe.LogoURL)
	if !asset.IsValid() {
		return Entry{}, fmt.Errorf("id and symbol are required")
	}

	price, err := domain.NewDecimalFromString(fe.SeedPrice)
	if err != nil {
		return Entry{}, err
	}
	if !price.IsPositive() {
		return Entry{}, fmt.Errorf("%s seed price must be positive, got %s", id, price)
	}
	return Entry{Asset: asset, SeedPrice: price}, nil
}

// List returns the entries in file order.
func (c *Catalog) List() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Assets() []domain.Asset {
	out := make([]domain.Asset, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Asset
	}
	return out
}

func (c *Catalog) Lookup(key domain.AssetKey) (Entry, bool) {
	i, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// SeedPrice is a domain.PriceLookup over the catalog's opening prices.
func (c *Catalog) SeedPrice(key domain.AssetKey) (domain.Decimal, bool) {
	e, ok := c.Lookup(key)
	if !ok {
		return domain.Zero, false
	}
	return e.SeedPrice, true
}
