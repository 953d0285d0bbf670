package processors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cgtfolio/src/models"
)

type stubClassifier struct {
	infos map[string]models.TickerInfo
}

func (c *stubClassifier) Resolve(ticker string) (models.TickerInfo, error) {
	if info, ok := c.infos[ticker]; ok {
		return info, nil
	}
	return models.TickerInfo{}, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
}

func stockInfo(ticker string) models.TickerInfo {
	return models.TickerInfo{Ticker: ticker, Class: models.AssetStock, Currency: "USD", Active: true, ConversionRatio: 1.0, Domicile: "US"}
}

func etfInfo(ticker string) models.TickerInfo {
	return models.TickerInfo{Ticker: ticker, Class: models.AssetETF, Currency: "EUR", Active: true, ConversionRatio: 1.0, Domicile: "IE"}
}

func buyTx(ticker string, d time.Time, qty, priceEUR float64) models.Transaction {
	return models.Transaction{Date: d, Ticker: ticker, Type: models.TxBuy, Quantity: qty, PriceEUR: priceEUR, AmountEUR: qty * priceEUR}
}

func sellTx(ticker string, d time.Time, qty, priceEUR float64) models.Transaction {
	return models.Transaction{Date: d, Ticker: ticker, Type: models.TxSell, Quantity: qty, PriceEUR: priceEUR, AmountEUR: qty * priceEUR}
}

func newTestEngine(classifier Classifier, valuer Valuer) *TaxEngine {
	return NewTaxEngine(classifier, valuer, DefaultRegime(), 8, date(2024, 6, 30))
}

func TestEngineStockBuySellAndDividend(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"AAPL": stockInfo("AAPL")}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	transactions := []models.Transaction{
		buyTx("AAPL", date(2020, 1, 10), 10, 100.00),
		sellTx("AAPL", date(2021, 2, 1), 5, 150.00),
		{Date: date(2021, 3, 1), Ticker: "AAPL", Type: models.TxDividend, AmountEUR: 100.00},
	}

	result, err := engine.Run(transactions)
	require.NoError(t, err)
	require.Len(t, result.YearlyStates, 1)

	state := result.YearlyStates[0]
	assert.Equal(t, 2021, state.Year)
	assert.InDelta(t, 250.00, state.StockGrossGainEUR, 1e-9)
	// Fully covered by the annual exemption.
	assert.Zero(t, state.StockTaxDueEUR)
	assert.InDelta(t, 100.00, state.Dividends.GrossEUR, 1e-9)
	assert.InDelta(t, 15.00, state.Dividends.ForeignCreditEUR, 1e-9)
	assert.InDelta(t, 25.00, state.Dividends.AdditionalDueEUR, 1e-9) // 40 tax less 15 credit

	require.Len(t, result.RealizedByTicker["AAPL"], 1)
	require.Len(t, result.DividendsByTicker["AAPL"], 1)
	require.Len(t, result.Holdings, 1)
	assert.InDelta(t, 5, result.Holdings[0].Quantity, 1e-9)
}

func TestEngineSortsTransactionsByDate(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"AAPL": stockInfo("AAPL")}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	// Sell arrives before the buy in file order; chronological order is fine.
	transactions := []models.Transaction{
		sellTx("AAPL", date(2021, 2, 1), 5, 150.00),
		buyTx("AAPL", date(2020, 1, 10), 10, 100.00),
	}

	_, err := engine.Run(transactions)
	require.NoError(t, err)
}

func TestEngineSellWithoutLotsFails(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"AAPL": stockInfo("AAPL")}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	_, err := engine.Run([]models.Transaction{sellTx("AAPL", date(2021, 2, 1), 5, 150.00)})
	require.ErrorIs(t, err, ErrInsufficientLots)
}

func TestEngineUnknownTickerFails(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	_, err := engine.Run([]models.Transaction{buyTx("ZZZZ", date(2021, 2, 1), 5, 10.00)})
	require.ErrorIs(t, err, ErrUnknownTicker)
}

func TestEngineDeemedDisposalAppearsInItsYear(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"VWCE": etfInfo("VWCE")}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{"VWCE": 80.00}})

	result, err := engine.Run([]models.Transaction{buyTx("VWCE", date(2015, 1, 10), 10, 50.00)})
	require.NoError(t, err)

	require.Len(t, result.YearlyStates, 1)
	state := result.YearlyStates[0]
	assert.Equal(t, 2023, state.Year)
	assert.InDelta(t, 300.00, state.ETFDeemedEUR, 1e-9)
	assert.InDelta(t, 123.00, state.ETFTaxDueEUR, 1e-9) // 300 * 0.41

	// The holding survives at the rebased cost.
	require.Len(t, result.Holdings, 1)
	assert.InDelta(t, 80.00, result.Holdings[0].UnitCostEUR, 1e-9)
}

func TestEngineDeemedBeforeSale(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"VWCE": etfInfo("VWCE")}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{"VWCE": 80.00}})

	transactions := []models.Transaction{
		buyTx("VWCE", date(2015, 1, 10), 10, 50.00),
		sellTx("VWCE", date(2023, 5, 1), 10, 90.00),
	}
	result, err := engine.Run(transactions)
	require.NoError(t, err)

	events := result.RealizedByTicker["VWCE"]
	require.Len(t, events, 2)
	// Anniversary fell in January, before the May sale.
	assert.Equal(t, models.KindDeemedDisposal, events[0].Kind)
	assert.InDelta(t, 300.00, events[0].GainEUR, 1e-9)
	// The sale then realizes only the growth since the deemed rebase.
	assert.Equal(t, models.KindSale, events[1].Kind)
	assert.InDelta(t, 100.00, events[1].GainEUR, 1e-9)
	assert.Empty(t, result.Holdings)
}

func TestEngineMergerConversionAndCash(t *testing.T) {
	oldInfo := stockInfo("OLD")
	oldInfo.MergedInto = "NEW"
	oldInfo.ConversionRatio = 1.0
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{
		"OLD": oldInfo,
		"NEW": stockInfo("NEW"),
	}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	transactions := []models.Transaction{
		buyTx("OLD", date(2020, 3, 1), 10, 20.00),
		{Date: date(2021, 5, 1), Ticker: "OLD", Type: models.TxMerger, SubType: models.SubTypeMergerStock},
		{Date: date(2021, 5, 1), Ticker: "OLD", Type: models.TxMerger, SubType: models.SubTypeMergerCash, AmountEUR: 30.00},
		sellTx("NEW", date(2022, 4, 1), 10, 35.00),
	}
	result, err := engine.Run(transactions)
	require.NoError(t, err)

	// The sale uses the pre-merger basis and acquisition date.
	sales := result.RealizedByTicker["NEW"]
	require.Len(t, sales, 1)
	assert.InDelta(t, 150.00, sales[0].GainEUR, 1e-9)
	require.Len(t, sales[0].Lots, 1)
	assert.Equal(t, date(2020, 3, 1), sales[0].Lots[0].AcquisitionDate)

	// Cash consideration is booked as foreign dividend income.
	dividends := result.DividendsByTicker["OLD"]
	require.Len(t, dividends, 1)
	assert.Equal(t, models.DividendForeign, dividends[0].Source)
	assert.InDelta(t, 30.00, dividends[0].GrossAmountEUR, 1e-9)
	assert.InDelta(t, 4.50, dividends[0].WithholdingCreditEUR, 1e-9)
}

func TestEngineTransferDeliversMergerShares(t *testing.T) {
	oldInfo := stockInfo("OLD")
	oldInfo.MergedInto = "NEW"
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{
		"OLD":        oldInfo,
		"NEW":        stockInfo("NEW"),
		"IRRELEVANT": stockInfo("IRRELEVANT"),
	}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	transactions := []models.Transaction{
		{Date: date(2021, 5, 1), Ticker: "OLD", Type: models.TxMerger, SubType: models.SubTypeMergerStock},
		{Date: date(2021, 6, 1), Ticker: "NEW", Type: models.TxTransfer, Quantity: 7},
		{Date: date(2021, 6, 1), Ticker: "IRRELEVANT", Type: models.TxTransfer, Quantity: 3},
	}
	result, err := engine.Run(transactions)
	require.NoError(t, err)

	// Merger-target transfers become zero-cost lots; other transfers are
	// custody moves and book nothing.
	require.Len(t, result.Holdings, 1)
	assert.Equal(t, "NEW", result.Holdings[0].Ticker)
	assert.InDelta(t, 7, result.Holdings[0].Quantity, 1e-9)
	assert.Zero(t, result.Holdings[0].CostEUR)
}

func TestEngineDelistingClosesPositionAtFullLoss(t *testing.T) {
	delisted := date(2024, 2, 14)
	info := stockInfo("WISH")
	info.Active = false
	info.DelistedOn = &delisted
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{"WISH": info}}
	engine := newTestEngine(classifier, &stubValuer{values: map[string]float64{}})

	result, err := engine.Run([]models.Transaction{buyTx("WISH", date(2021, 2, 1), 100, 12.50)})
	require.NoError(t, err)

	events := result.RealizedByTicker["WISH"]
	require.Len(t, events, 1)
	assert.Equal(t, models.KindDelistingLoss, events[0].Kind)
	assert.Equal(t, delisted, events[0].Date)
	assert.InDelta(t, -1250.00, events[0].GainEUR, 1e-9)
	assert.Empty(t, result.Holdings)

	require.Len(t, result.YearlyStates, 1)
	assert.Equal(t, 2024, result.YearlyStates[0].Year)
	assert.InDelta(t, 1250.00, result.YearlyStates[0].LossCarriedForwardEUR, 1e-9)
}

func TestEngineRunIsDeterministic(t *testing.T) {
	classifier := &stubClassifier{infos: map[string]models.TickerInfo{
		"AAPL": stockInfo("AAPL"),
		"VWCE": etfInfo("VWCE"),
	}}
	transactions := []models.Transaction{
		buyTx("AAPL", date(2020, 1, 10), 10, 100.00),
		buyTx("VWCE", date(2015, 1, 10), 10, 50.00),
		sellTx("AAPL", date(2021, 2, 1), 5, 150.00),
		{Date: date(2021, 3, 1), Ticker: "AAPL", Type: models.TxDividend, AmountEUR: 100.00},
	}

	first, err := newTestEngine(classifier, &stubValuer{values: map[string]float64{"VWCE": 80.00}}).Run(transactions)
	require.NoError(t, err)
	second, err := newTestEngine(classifier, &stubValuer{values: map[string]float64{"VWCE": 80.00}}).Run(transactions)
	require.NoError(t, err)

	assert.Equal(t, first.YearlyStates, second.YearlyStates)
	assert.Equal(t, first.Holdings, second.Holdings)
}
