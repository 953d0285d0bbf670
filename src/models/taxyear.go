package models

// DividendTaxSummary is the stock-dividend income-tax breakdown for one year.
// ETF distributions never appear here; they are taxed in the exit-tax branch.
type DividendTaxSummary struct {
	GrossEUR          float64 `json:"gross_eur"`
	DomesticEUR       float64 `json:"domestic_eur"`
	ForeignEUR        float64 `json:"foreign_eur"`
	MarginalRatePct   int     `json:"marginal_rate_pct"`
	IncomeTaxEUR      float64 `json:"income_tax_eur"`
	DomesticCreditEUR float64 `json:"domestic_credit_eur"`
	ForeignCreditEUR  float64 `json:"foreign_credit_eur"`
	TotalCreditsEUR   float64 `json:"total_credits_eur"`
	AdditionalDueEUR  float64 `json:"additional_due_eur"`
	RefundDueEUR      float64 `json:"refund_due_eur"`
}

// YearlyTaxState is the finalized tax position for one year. It is read-only
// once produced by the aggregator.
type YearlyTaxState struct {
	Year int `json:"year"`

	// Stock branch (capital gains tax).
	StockGrossGainEUR     float64 `json:"stock_gross_gain_eur"`
	ExemptionAppliedEUR   float64 `json:"exemption_applied_eur"`
	CarryForwardUsedEUR   float64 `json:"carry_forward_used_eur"`
	StockTaxableEUR       float64 `json:"stock_taxable_eur"`
	StockTaxDueEUR        float64 `json:"stock_tax_due_eur"`
	LossCarriedForwardEUR float64 `json:"loss_carried_forward_eur"` // register balance after this year

	// ETF branch (exit tax).
	ETFRealizedEUR  float64 `json:"etf_realized_eur"`
	ETFDividendsEUR float64 `json:"etf_dividends_eur"`
	ETFDeemedEUR    float64 `json:"etf_deemed_eur"`
	ETFTaxableEUR   float64 `json:"etf_taxable_eur"`
	ETFTaxDueEUR    float64 `json:"etf_tax_due_eur"`

	// Stock-dividend income tax.
	Dividends DividendTaxSummary `json:"dividends"`

	TotalTaxDueEUR float64 `json:"total_tax_due_eur"`
}
