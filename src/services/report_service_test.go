package services

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cgtfolio/src/database"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	database.InitDB(":memory:")
	os.Exit(m.Run())
}

type fixedClassifier struct {
	infos map[string]models.TickerInfo
}

func (c *fixedClassifier) Resolve(ticker string) (models.TickerInfo, error) {
	if info, ok := c.infos[ticker]; ok {
		return info, nil
	}
	return models.TickerInfo{}, fmt.Errorf("%w: %s", processors.ErrUnknownTicker, ticker)
}

type fixedValuer struct {
	values map[string]float64
}

func (v *fixedValuer) UnitValueEUR(ticker string, date time.Time) (float64, error) {
	if value, ok := v.values[ticker]; ok {
		return value, nil
	}
	return 0, fmt.Errorf("no valuation for %s", ticker)
}

func newTestReportService() ReportService {
	classifier := &fixedClassifier{infos: map[string]models.TickerInfo{
		"AAPL": {Ticker: "AAPL", Class: models.AssetStock, Currency: "USD", Active: true, ConversionRatio: 1.0, Domicile: "US"},
		"VWCE": {Ticker: "VWCE", Class: models.AssetETF, Currency: "EUR", Active: true, ConversionRatio: 1.0, Domicile: "IE"},
	}}
	valuer := &fixedValuer{values: map[string]float64{"VWCE": 80.00}}
	return NewReportService(
		processors.NewTransactionNormalizer(),
		classifier,
		valuer,
		processors.DefaultRegime(),
		8,
		cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	)
}

const sampleStatement = `Date,Ticker,Type,Quantity,Price per share,Total Amount,Currency,FX Rate
2020-01-10,AAPL,BUY - MARKET,10,€100.00,"€1,000.00",EUR,
2021-02-01,AAPL,SELL - MARKET,5,€150.00,€750.00,EUR,
2021-03-01,AAPL,DIVIDEND,,,€100.00,EUR,
2021-04-01,X,CASH TOP-UP,,,€500.00,EUR,
`

func TestProcessUploadAndReports(t *testing.T) {
	service := newTestReportService()
	userID := int64(101)

	result, err := service.ProcessUpload(strings.NewReader(sampleStatement), userID, "revolut")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported) // cash top-up is ignored
	assert.Zero(t, result.Duplicates)
	assert.Empty(t, result.Rejected)

	require.Len(t, result.YearlyStates, 1)
	state := result.YearlyStates[0]
	assert.Equal(t, 2021, state.Year)
	assert.InDelta(t, 250.00, state.StockGrossGainEUR, 1e-9)
	assert.InDelta(t, 100.00, state.Dividends.GrossEUR, 1e-9)

	holdings, err := service.GetHoldings(userID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Ticker)
	assert.InDelta(t, 5, holdings[0].Quantity, 1e-9)

	report, err := service.GetTickerReport(userID, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Ticker)
	assert.Len(t, report.Realized, 1)
	assert.Len(t, report.Dividends, 1)
	require.NotNil(t, report.Holding)

	transactions, err := service.GetTransactions(userID)
	require.NoError(t, err)
	assert.Len(t, transactions, 3)
}

func TestProcessUploadDeduplicatesAcrossFiles(t *testing.T) {
	service := newTestReportService()
	userID := int64(102)

	first, err := service.ProcessUpload(strings.NewReader(sampleStatement), userID, "revolut")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Imported)

	// Re-uploading an overlapping statement imports nothing new and the
	// computed states stay identical.
	second, err := service.ProcessUpload(strings.NewReader(sampleStatement), userID, "revolut")
	require.NoError(t, err)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, first.YearlyStates, second.YearlyStates)
}

func TestProcessUploadUnknownSource(t *testing.T) {
	service := newTestReportService()

	_, err := service.ProcessUpload(strings.NewReader(sampleStatement), 103, "degiro")
	require.ErrorIs(t, err, ErrParsingFailed)
}

func TestDeleteTransactionsClearsReports(t *testing.T) {
	service := newTestReportService()
	userID := int64(104)

	_, err := service.ProcessUpload(strings.NewReader(sampleStatement), userID, "revolut")
	require.NoError(t, err)

	require.NoError(t, service.DeleteTransactions(userID))

	states, err := service.GetYearlyTaxStates(userID)
	require.NoError(t, err)
	assert.Empty(t, states)

	transactions, err := service.GetTransactions(userID)
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestDividendReportOnlyYearsWithDividends(t *testing.T) {
	service := newTestReportService()
	userID := int64(105)

	_, err := service.ProcessUpload(strings.NewReader(sampleStatement), userID, "revolut")
	require.NoError(t, err)

	rows, err := service.GetDividendReport(userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2021, rows[0].Year)
	assert.InDelta(t, 100.00, rows[0].Dividends.GrossEUR, 1e-9)
}
