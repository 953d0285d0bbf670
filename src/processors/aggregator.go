package processors

import (
	"fmt"

	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/utils"
)

// RegimeConfig carries the tax-regime parameters the aggregator applies.
type RegimeConfig struct {
	ExemptionAmountEUR        float64
	StockCGTRate              float64
	ETFExitTaxRate            float64
	MarginalIncomeTaxRatePct  int
	DomesticDividendCreditPct float64
	ForeignDividendCreditPct  float64
}

// DefaultRegime returns the current regime parameters.
func DefaultRegime() RegimeConfig {
	return RegimeConfig{
		ExemptionAmountEUR:        1270.0,
		StockCGTRate:              0.33,
		ETFExitTaxRate:            0.41,
		MarginalIncomeTaxRatePct:  40,
		DomesticDividendCreditPct: 0.25,
		ForeignDividendCreditPct:  0.15,
	}
}

// LossCarryForwardRegister is the single cross-year pool of unused
// stock-class losses. ETF losses never enter it (no loss relief under the
// exit-tax regime). The balance is never negative.
type LossCarryForwardRegister struct {
	balanceEUR float64
}

func NewLossCarryForwardRegister() *LossCarryForwardRegister {
	return &LossCarryForwardRegister{}
}

func (r *LossCarryForwardRegister) Balance() float64 { return r.balanceEUR }

func (r *LossCarryForwardRegister) add(lossEUR float64) {
	if lossEUR > 0 {
		r.balanceEUR += lossEUR
	}
}

// consume draws up to maxEUR from the pool and returns the amount used.
func (r *LossCarryForwardRegister) consume(maxEUR float64) float64 {
	if maxEUR <= 0 || r.balanceEUR <= 0 {
		return 0
	}
	used := maxEUR
	if r.balanceEUR < used {
		used = r.balanceEUR
	}
	r.balanceEUR -= used
	return used
}

// TaxYearAggregator turns one year's realized and dividend events into a
// YearlyTaxState. Years must be supplied in strictly ascending order because
// the carry-forward register is sequential state.
type TaxYearAggregator struct {
	regime   RegimeConfig
	register *LossCarryForwardRegister
	lastYear int
}

func NewTaxYearAggregator(regime RegimeConfig, register *LossCarryForwardRegister) *TaxYearAggregator {
	return &TaxYearAggregator{
		regime:   regime,
		register: register,
	}
}

// ProcessYear applies the regime to one tax year.
//
// Stock branch: gains and losses net to a gross figure. Positive gross gets
// the annual exemption, then the carry-forward pool, then the CGT rate. A
// net loss feeds the pool and owes nothing.
//
// ETF branch: realized gains, distributions and deemed-disposal gains form
// one taxable total with no exemption and no loss offset. Negative
// components reduce the total but tax owed is floored at zero.
//
// Dividend branch: stock dividends only. Income tax at the marginal rate,
// less withholding credits, additional tax floored at zero.
func (a *TaxYearAggregator) ProcessYear(year int, realized []models.RealizedEvent, dividends []models.DividendEvent) (models.YearlyTaxState, error) {
	if a.lastYear != 0 && year <= a.lastYear {
		return models.YearlyTaxState{}, fmt.Errorf("%w: got %d after %d", ErrNonMonotonicYear, year, a.lastYear)
	}
	a.lastYear = year

	state := models.YearlyTaxState{Year: year}

	var stockGross, etfRealized, etfDeemed float64
	for _, event := range realized {
		switch {
		case event.Class == models.AssetETF && event.Kind == models.KindDeemedDisposal:
			etfDeemed += event.GainEUR
		case event.Class == models.AssetETF:
			etfRealized += event.GainEUR
		default:
			stockGross += event.GainEUR
		}
	}

	var etfDividends, stockDomestic, stockForeign, domesticCredit, foreignCredit float64
	for _, dividend := range dividends {
		if dividend.Class == models.AssetETF {
			etfDividends += dividend.GrossAmountEUR
			continue
		}
		switch dividend.Source {
		case models.DividendDomestic:
			stockDomestic += dividend.GrossAmountEUR
			domesticCredit += dividend.WithholdingCreditEUR
		default:
			stockForeign += dividend.GrossAmountEUR
			foreignCredit += dividend.WithholdingCreditEUR
		}
	}

	// Stock branch.
	afterExemption := stockGross
	if stockGross > 0 {
		state.ExemptionAppliedEUR = stockGross
		if state.ExemptionAppliedEUR > a.regime.ExemptionAmountEUR {
			state.ExemptionAppliedEUR = a.regime.ExemptionAmountEUR
		}
		afterExemption = stockGross - state.ExemptionAppliedEUR
	}
	state.CarryForwardUsedEUR = a.register.consume(afterExemption)
	afterExemption -= state.CarryForwardUsedEUR
	if afterExemption > 0 {
		state.StockTaxableEUR = afterExemption
	} else {
		a.register.add(-afterExemption)
	}
	state.StockGrossGainEUR = utils.RoundCents(stockGross)
	state.StockTaxableEUR = utils.RoundCents(state.StockTaxableEUR)
	state.StockTaxDueEUR = utils.RoundCents(state.StockTaxableEUR * a.regime.StockCGTRate)
	state.LossCarriedForwardEUR = utils.RoundCents(a.register.Balance())
	state.ExemptionAppliedEUR = utils.RoundCents(state.ExemptionAppliedEUR)
	state.CarryForwardUsedEUR = utils.RoundCents(state.CarryForwardUsedEUR)

	// ETF branch.
	etfTaxable := etfRealized + etfDividends + etfDeemed
	state.ETFRealizedEUR = utils.RoundCents(etfRealized)
	state.ETFDividendsEUR = utils.RoundCents(etfDividends)
	state.ETFDeemedEUR = utils.RoundCents(etfDeemed)
	state.ETFTaxableEUR = utils.RoundCents(etfTaxable)
	if etfTaxable > 0 {
		state.ETFTaxDueEUR = utils.RoundCents(etfTaxable * a.regime.ETFExitTaxRate)
	}

	// Stock-dividend income tax.
	gross := stockDomestic + stockForeign
	if gross > 0 {
		incomeTax := gross * float64(a.regime.MarginalIncomeTaxRatePct) / 100
		credits := domesticCredit + foreignCredit
		additional := incomeTax - credits
		refund := credits - incomeTax
		if additional < 0 {
			additional = 0
		}
		if refund < 0 {
			refund = 0
		}
		state.Dividends = models.DividendTaxSummary{
			GrossEUR:          utils.RoundCents(gross),
			DomesticEUR:       utils.RoundCents(stockDomestic),
			ForeignEUR:        utils.RoundCents(stockForeign),
			MarginalRatePct:   a.regime.MarginalIncomeTaxRatePct,
			IncomeTaxEUR:      utils.RoundCents(incomeTax),
			DomesticCreditEUR: utils.RoundCents(domesticCredit),
			ForeignCreditEUR:  utils.RoundCents(foreignCredit),
			TotalCreditsEUR:   utils.RoundCents(credits),
			AdditionalDueEUR:  utils.RoundCents(additional),
			RefundDueEUR:      utils.RoundCents(refund),
		}
	}

	state.TotalTaxDueEUR = utils.RoundCents(state.StockTaxDueEUR + state.ETFTaxDueEUR + state.Dividends.AdditionalDueEUR)
	return state, nil
}
