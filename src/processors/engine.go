package processors

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/utils"
)

// TaxEngine runs the full computation pass: chronological ledger
// construction, deemed-disposal injection and year-by-year aggregation.
// It is single-threaded and deterministic; all mutable state (the ledger,
// the carry-forward register) is owned by one Run call.
type TaxEngine struct {
	classifier        Classifier
	valuer            Valuer
	regime            RegimeConfig
	deemedPeriodYears int
	asOf              time.Time
}

func NewTaxEngine(classifier Classifier, valuer Valuer, regime RegimeConfig, deemedPeriodYears int, asOf time.Time) *TaxEngine {
	return &TaxEngine{
		classifier:        classifier,
		valuer:            valuer,
		regime:            regime,
		deemedPeriodYears: deemedPeriodYears,
		asOf:              asOf,
	}
}

// RunResult is everything one pass produces: finalized yearly states plus
// the per-ticker event detail and open positions for drill-down views.
type RunResult struct {
	YearlyStates      []models.YearlyTaxState           `json:"yearly_states"`
	RealizedByTicker  map[string][]models.RealizedEvent `json:"realized_by_ticker"`
	DividendsByTicker map[string][]models.DividendEvent `json:"dividends_by_ticker"`
	Holdings          []models.HoldingSnapshot          `json:"holdings"`
}

// Run processes the merged multi-file history. The stream is stable-sorted
// by date so same-day rows keep their file-appearance order; replaying the
// same input with the same classifier data reproduces identical states.
func (e *TaxEngine) Run(transactions []models.Transaction) (*RunResult, error) {
	txs := make([]models.Transaction, len(transactions))
	copy(txs, transactions)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	ledger := NewLotLedger()
	deemed := NewDeemedDisposalEngine(ledger, e.valuer, e.deemedPeriodYears)
	result := &RunResult{
		RealizedByTicker:  make(map[string][]models.RealizedEvent),
		DividendsByTicker: make(map[string][]models.DividendEvent),
	}

	infos := make(map[string]models.TickerInfo)
	resolve := func(ticker string) (models.TickerInfo, error) {
		if info, ok := infos[ticker]; ok {
			return info, nil
		}
		info, err := e.classifier.Resolve(ticker)
		if err != nil {
			if errors.Is(err, ErrUnknownTicker) {
				return models.TickerInfo{}, err
			}
			return models.TickerInfo{}, fmt.Errorf("%w: %s: %v", ErrUnknownTicker, ticker, err)
		}
		infos[ticker] = info
		return info, nil
	}

	// Tickers that receive shares from a merger; their TRANSFER rows are
	// share deliveries, not custody moves.
	mergerTargets := make(map[string]bool)
	for _, tx := range txs {
		info, err := resolve(tx.Ticker)
		if err != nil {
			return nil, err
		}
		if info.MergedInto != "" {
			mergerTargets[info.MergedInto] = true
		}
	}

	record := func(event models.RealizedEvent) {
		result.RealizedByTicker[event.Ticker] = append(result.RealizedByTicker[event.Ticker], event)
	}
	realizeDue := func(ticker string, clock time.Time) error {
		events, err := deemed.RealizeDue(ticker, clock)
		for _, event := range events {
			record(event)
		}
		return err
	}

	for _, tx := range txs {
		info := infos[tx.Ticker]
		switch tx.Type {
		case models.TxBuy:
			unitCost := tx.PriceEUR
			if unitCost == 0 && tx.Quantity > 0 {
				unitCost = abs(tx.AmountEUR) / tx.Quantity
			}
			if err := ledger.Acquire(tx.Ticker, tx.Quantity, unitCost, tx.Date, info.Class); err != nil {
				return nil, txError(err, tx)
			}

		case models.TxSell:
			if info.IsETF() {
				if err := realizeDue(tx.Ticker, tx.Date); err != nil {
					return nil, txError(err, tx)
				}
			}
			proceeds := tx.PriceEUR * tx.Quantity
			if proceeds == 0 {
				proceeds = abs(tx.AmountEUR)
			}
			event, err := ledger.Dispose(tx.Ticker, tx.Quantity, proceeds, tx.Date, models.KindSale)
			if err != nil {
				return nil, txError(err, tx)
			}
			record(event)

		case models.TxDividend:
			result.DividendsByTicker[tx.Ticker] = append(result.DividendsByTicker[tx.Ticker], e.dividendEvent(tx, info))

		case models.TxMerger:
			if tx.SubType == models.SubTypeMergerCash {
				// Cash consideration from a merger is taxed as dividend income.
				cash := tx
				cash.PriceEUR = 0
				result.DividendsByTicker[tx.Ticker] = append(result.DividendsByTicker[tx.Ticker], e.dividendEvent(cash, info))
				continue
			}
			if info.MergedInto == "" {
				logger.L.Warn("Merger row for ticker without merger mapping, skipping",
					"ticker", tx.Ticker, "date", tx.Date, "row", tx.RowRef)
				continue
			}
			if info.IsETF() {
				if err := realizeDue(tx.Ticker, tx.Date); err != nil {
					return nil, txError(err, tx)
				}
			}
			ratio := info.ConversionRatio
			if ratio == 0 {
				ratio = 1.0
			}
			if err := ledger.Convert(tx.Ticker, info.MergedInto, ratio, 0, tx.Date); err != nil {
				return nil, txError(err, tx)
			}

		case models.TxTransfer:
			// Broker-migration deliveries of merger shares arrive as
			// transfers; they are zero-cost acquisitions. Other transfers
			// are custody moves and carry no tax consequence.
			target := ""
			if info.MergedInto != "" {
				target = info.MergedInto
			} else if mergerTargets[tx.Ticker] {
				target = tx.Ticker
			}
			if target == "" || tx.Quantity <= 0 {
				continue
			}
			targetInfo, err := resolve(target)
			if err != nil {
				return nil, txError(err, tx)
			}
			if err := ledger.Acquire(target, tx.Quantity, 0, tx.Date, targetInfo.Class); err != nil {
				return nil, txError(err, tx)
			}

		default:
			// IGNORED rows are filtered by the normalizer; anything else
			// reaching here is a programming error worth seeing in logs.
			logger.L.Warn("Unhandled transaction type", "type", tx.Type, "ticker", tx.Ticker, "row", tx.RowRef)
		}
	}

	// Close out the history: remaining anniversaries, then delistings.
	for _, ticker := range ledger.Tickers() {
		info, err := resolve(ticker)
		if err != nil {
			return nil, err
		}
		if !info.Active {
			closeDate := e.asOf
			if info.DelistedOn != nil {
				closeDate = *info.DelistedOn
			}
			if info.IsETF() {
				if err := realizeDue(ticker, closeDate); err != nil {
					return nil, err
				}
			}
			if event, ok := ledger.Delist(ticker, closeDate); ok {
				record(event)
			}
			continue
		}
		if info.IsETF() {
			if err := realizeDue(ticker, e.asOf); err != nil {
				return nil, err
			}
		}
	}

	states, err := e.aggregate(result)
	if err != nil {
		return nil, err
	}
	result.YearlyStates = states
	result.Holdings = ledger.Snapshot()
	return result, nil
}

// aggregate groups events by tax year and feeds them to the aggregator in
// ascending order.
func (e *TaxEngine) aggregate(result *RunResult) ([]models.YearlyTaxState, error) {
	realizedByYear := make(map[int][]models.RealizedEvent)
	dividendsByYear := make(map[int][]models.DividendEvent)
	yearSet := make(map[int]bool)
	for _, events := range result.RealizedByTicker {
		for _, event := range events {
			realizedByYear[event.Date.Year()] = append(realizedByYear[event.Date.Year()], event)
			yearSet[event.Date.Year()] = true
		}
	}
	for _, events := range result.DividendsByTicker {
		for _, event := range events {
			dividendsByYear[event.Date.Year()] = append(dividendsByYear[event.Date.Year()], event)
			yearSet[event.Date.Year()] = true
		}
	}

	years := make([]int, 0, len(yearSet))
	for year := range yearSet {
		years = append(years, year)
	}
	sort.Ints(years)

	aggregator := NewTaxYearAggregator(e.regime, NewLossCarryForwardRegister())
	states := make([]models.YearlyTaxState, 0, len(years))
	for _, year := range years {
		state, err := aggregator.ProcessYear(year, realizedByYear[year], dividendsByYear[year])
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// dividendEvent builds a dividend with its withholding credit precomputed
// from the regime's credit rates. ETF distributions carry no credit; they
// are taxed in full through the exit-tax branch.
func (e *TaxEngine) dividendEvent(tx models.Transaction, info models.TickerInfo) models.DividendEvent {
	gross := abs(tx.AmountEUR)
	event := models.DividendEvent{
		Ticker:         tx.Ticker,
		Class:          info.Class,
		Date:           tx.Date,
		GrossAmountEUR: gross,
		Source:         models.DividendForeign,
	}
	if info.Domicile == "IE" {
		event.Source = models.DividendDomestic
	}
	if !info.IsETF() {
		switch event.Source {
		case models.DividendDomestic:
			event.WithholdingCreditEUR = utils.RoundCents(gross * e.regime.DomesticDividendCreditPct)
		default:
			event.WithholdingCreditEUR = utils.RoundCents(gross * e.regime.ForeignDividendCreditPct)
		}
	}
	return event
}

func txError(err error, tx models.Transaction) error {
	return fmt.Errorf("%s %s on %s (row %d, source %s): %w",
		tx.Type, tx.Ticker, utils.FormatDate(tx.Date), tx.RowRef, tx.Source, err)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
