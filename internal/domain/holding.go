package domain

// HoldingEntry is one currently held asset. Entries only exist while Quantity > 0.
type HoldingEntry struct {
	AssetID         string    `json:"asset_id"`
	AssetType       AssetType `json:"asset_type"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	LogoURL         string    `json:"logo_url,omitempty"`
	Quantity        Decimal   `json:"quantity"`
	AverageBuyPrice Decimal   `json:"average_buy_price"`
}

func (h HoldingEntry) Key() AssetKey {
	return AssetKey{ID: h.AssetID, Type: h.AssetType}
}

// TotalCost is the cost basis of the whole entry: quantity * average buy price.
func (h HoldingEntry) TotalCost() (Decimal, error) {
	return h.Quantity.Mul(h.AverageBuyPrice)
}
