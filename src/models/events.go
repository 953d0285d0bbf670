package models

import "time"

// RealizedKind distinguishes how a gain or loss was crystallized.
type RealizedKind string

const (
	KindSale           RealizedKind = "SALE"
	KindDeemedDisposal RealizedKind = "DEEMED_DISPOSAL"
	KindDelistingLoss  RealizedKind = "DELISTING_LOSS"
)

// LotMatch is the per-lot breakdown of a disposal, for drill-down reporting.
// Proceeds are allocated pro-rata; the taxable gain is computed once on the
// aggregate event, not per lot.
type LotMatch struct {
	AcquisitionDate time.Time `json:"acquisition_date"`
	Quantity        float64   `json:"quantity"`
	UnitCostEUR     float64   `json:"unit_cost_eur"`
	CostEUR         float64   `json:"cost_eur"`
	ProceedsEUR     float64   `json:"proceeds_eur"`
}

// RealizedEvent is the output of matching a disposal against open lots.
type RealizedEvent struct {
	Ticker      string       `json:"ticker"`
	Class       AssetClass   `json:"asset_class"`
	Date        time.Time    `json:"date"`
	Kind        RealizedKind `json:"kind"`
	Quantity    float64      `json:"quantity"`
	ProceedsEUR float64      `json:"proceeds_eur"`
	CostEUR     float64      `json:"cost_eur"`
	GainEUR     float64      `json:"gain_eur"`
	Lots        []LotMatch   `json:"lots,omitempty"`
}

// DividendSource splits dividend income by where it was taxed at source.
type DividendSource string

const (
	DividendDomestic DividendSource = "DOMESTIC"
	DividendForeign  DividendSource = "FOREIGN"
)

// DividendEvent is a cash distribution attributed to a ticker. The
// withholding credit is computed at event creation from the regime's credit
// rates so the aggregator only has to sum.
type DividendEvent struct {
	Ticker               string         `json:"ticker"`
	Class                AssetClass     `json:"asset_class"`
	Date                 time.Time      `json:"date"`
	GrossAmountEUR       float64        `json:"gross_amount_eur"`
	Source               DividendSource `json:"source_country"`
	WithholdingCreditEUR float64        `json:"withholding_credit_eur"`
}

// HoldingSnapshot is the open position of one ticker as of the last
// processed date: total quantity and quantity-weighted unit cost.
type HoldingSnapshot struct {
	Ticker            string     `json:"ticker"`
	Class             AssetClass `json:"asset_class"`
	Quantity          float64    `json:"quantity"`
	UnitCostEUR       float64    `json:"unit_cost_eur"`
	CostEUR           float64    `json:"cost_eur"`
	OldestAcquisition time.Time  `json:"oldest_acquisition"`
}
