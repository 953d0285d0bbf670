package revolut

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const sampleStatement = `Date,Ticker,Type,Quantity,Price per share,Total Amount,Currency,FX Rate
2021-02-01,AAPL,BUY - MARKET,5,$150.00,"$750.00",USD,0.85
2021-03-15,AAPL,DIVIDEND,,,"$4.10",USD,0.84
2021-06-01,VWCE,BUY - MARKET,2,€100.00,"€200.00",EUR,
2022-01-10,AAPL,SELL - LIMIT,3,"$1,200.00","$3,600.00",USD,0.88
2022-02-01,,CASH TOP-UP,,,"€500.00",EUR,
2022-03-01,OLD,MERGER - STOCK,10,,,USD,0.90
2022-03-01,OLD,MERGER - CASH,,,"$30.00",USD,0.90
2022-04-01,NEW,TRANSFER FROM REVOLUT TRADING LTD TO REVOLUT SECURITIES EUROPE UAB,7,,,USD,0.90
`

func TestParseStatement(t *testing.T) {
	parser := NewParser()
	txs, err := parser.Parse(strings.NewReader(sampleStatement))
	require.NoError(t, err)
	require.Len(t, txs, 8)

	buy := txs[0]
	assert.Equal(t, "revolut", buy.Source)
	assert.Equal(t, models.TxBuy, buy.TransactionType)
	assert.Equal(t, "AAPL", buy.Ticker)
	assert.InDelta(t, 5, buy.Quantity, 1e-9)
	assert.InDelta(t, 150.00, buy.Price, 1e-9)
	assert.InDelta(t, 750.00, buy.TotalAmount, 1e-9)
	assert.Equal(t, "USD", buy.Currency)
	assert.InDelta(t, 0.85, buy.FXRateToEUR, 1e-9)
	assert.Equal(t, 2, buy.RowRef)

	assert.Equal(t, models.TxDividend, txs[1].TransactionType)
	assert.InDelta(t, 4.10, txs[1].TotalAmount, 1e-9)

	// Thousands separators inside quoted cells.
	sell := txs[3]
	assert.Equal(t, models.TxSell, sell.TransactionType)
	assert.InDelta(t, 1200.00, sell.Price, 1e-9)
	assert.InDelta(t, 3600.00, sell.TotalAmount, 1e-9)

	assert.Equal(t, models.TxIgnored, txs[4].TransactionType)

	assert.Equal(t, models.TxMerger, txs[5].TransactionType)
	assert.Equal(t, models.SubTypeMergerStock, txs[5].TransactionSubType)
	assert.Equal(t, models.TxMerger, txs[6].TransactionType)
	assert.Equal(t, models.SubTypeMergerCash, txs[6].TransactionSubType)

	assert.Equal(t, models.TxTransfer, txs[7].TransactionType)
}

func TestParseSkipsUnparseableDates(t *testing.T) {
	statement := "Date,Ticker,Type,Quantity,Price per share,Total Amount,Currency,FX Rate\n" +
		"not-a-date,AAPL,BUY - MARKET,5,$150.00,$750.00,USD,0.85\n" +
		"2021-02-01,AAPL,BUY - MARKET,5,$150.00,$750.00,USD,0.85\n"

	parser := NewParser()
	txs, err := parser.Parse(strings.NewReader(statement))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 3, txs[0].RowRef)
}

func TestParseRejectsMissingColumns(t *testing.T) {
	statement := "Date,Ticker,Quantity\n2021-02-01,AAPL,5\n"

	parser := NewParser()
	_, err := parser.Parse(strings.NewReader(statement))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestClassifyTransactionType(t *testing.T) {
	cases := []struct {
		input   string
		txType  models.TransactionType
		subType string
	}{
		{"BUY - MARKET", models.TxBuy, ""},
		{"SELL - LIMIT", models.TxSell, ""},
		{"DIVIDEND", models.TxDividend, ""},
		{"MERGER - STOCK", models.TxMerger, models.SubTypeMergerStock},
		{"MERGER - CASH", models.TxMerger, models.SubTypeMergerCash},
		{"MERGER", models.TxMerger, ""},
		{"TRANSFER FROM REVOLUT TRADING LTD TO REVOLUT SECURITIES EUROPE UAB", models.TxTransfer, ""},
		{"TRANSFER OUT", models.TxIgnored, ""},
		{"CASH TOP-UP", models.TxIgnored, ""},
		{"CUSTODY FEE", models.TxIgnored, ""},
	}

	for _, tc := range cases {
		txType, subType := classifyTransactionType(tc.input)
		assert.Equal(t, tc.txType, txType, "input %q", tc.input)
		assert.Equal(t, tc.subType, subType, "input %q", tc.input)
	}
}

func TestParseAmount(t *testing.T) {
	assert.InDelta(t, 1234.56, parseAmount("$1,234.56"), 1e-9)
	assert.InDelta(t, 12.30, parseAmount("€12.30"), 1e-9)
	assert.InDelta(t, -45.00, parseAmount("-$45.00"), 1e-9)
	assert.Zero(t, parseAmount(""))
	assert.Zero(t, parseAmount("n/a"))
}
