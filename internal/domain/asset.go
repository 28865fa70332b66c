package domain

import (
	"fmt"
	"strings"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "stock"
	AssetTypeCrypto AssetType = "crypto"
)

// ParseAssetType accepts the canonical lower-case names, ignoring case and surrounding space.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(strings.ToLower(strings.TrimSpace(s))); t {
	case AssetTypeStock, AssetTypeCrypto:
		return t, nil
	default:
		return "", fmt.Errorf("unknown asset type %q", s)
	}
}

func (t AssetType) IsValid() bool {
	return t == AssetTypeStock || t == AssetTypeCrypto
}

// QuantityPlaces is the number of fractional digits used when displaying a quantity.
func (t AssetType) QuantityPlaces() int32 {
	if t == AssetTypeCrypto {
		return 4
	}
	return 2
}

// AssetKey identifies a holding. An asset id is only unique within its type.
type AssetKey struct {
	ID   string    `json:"asset_id"`
	Type AssetType `json:"asset_type"`
}

func (k AssetKey) String() string {
	return string(k.Type) + ":" + k.ID
}

// Asset is immutable reference data. Prices are supplied per call, never stored here.
type Asset struct {
	ID      string    `json:"id" yaml:"id"`
	Symbol  string    `json:"symbol" yaml:"symbol"`
	Name    string    `json:"name" yaml:"name"`
	Type    AssetType `json:"asset_type" yaml:"type"`
	LogoURL string    `json:"logo_url,omitempty" yaml:"logo_url"`
}

func NewAsset(id, symbol, name string, assetType AssetType, logoURL string) Asset {
	return Asset{
		ID:      id,
		Symbol:  symbol,
		Name:    name,
		Type:    assetType,
		LogoURL: logoURL,
	}
}

func (a Asset) Key() AssetKey {
	return AssetKey{ID: a.ID, Type: a.Type}
}

func (a Asset) IsValid() bool {
	return a.ID != "" && a.Symbol != "" && a.Type.IsValid()
}
