package models

import "time"

// AssetClass determines which tax branch a ticker's events land in. It is
// supplied by the classifier and immutable for the duration of a run.
type AssetClass string

const (
	AssetStock AssetClass = "STOCK"
	AssetETF   AssetClass = "ETF"
)

// TickerInfo is the classifier's view of a ticker: asset class, lifecycle
// status and merger metadata. The engine never resolves this itself; it is
// injected, backed by the persisted ticker cache.
type TickerInfo struct {
	Ticker              string     `json:"ticker"`
	Class               AssetClass `json:"asset_class"`
	Currency            string     `json:"currency"`
	Active              bool       `json:"active"`
	DelistedOn          *time.Time `json:"delisted_on,omitempty"`
	MergedInto          string     `json:"merged_into,omitempty"`
	ConversionRatio     float64    `json:"conversion_ratio,omitempty"`
	WithholdingDeducted bool       `json:"withholding_tax_deducted"`
	Domicile            string     `json:"domicile"`
}

// IsETF reports whether the ticker falls under the exit-tax regime.
func (t TickerInfo) IsETF() bool { return t.Class == AssetETF }
