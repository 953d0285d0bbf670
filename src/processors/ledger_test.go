package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cgtfolio/src/models"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestLedgerDisposeFIFO(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("AAPL", 10, 1.00, date(2020, 1, 2), models.AssetStock))
	require.NoError(t, ledger.Acquire("AAPL", 10, 2.00, date(2020, 6, 2), models.AssetStock))

	event, err := ledger.Dispose("AAPL", 12, 36.00, date(2021, 3, 1), models.KindSale)
	require.NoError(t, err)

	assert.Equal(t, models.KindSale, event.Kind)
	assert.InDelta(t, 14.00, event.CostEUR, 1e-9) // 10@1.00 + 2@2.00
	assert.InDelta(t, 22.00, event.GainEUR, 1e-9)
	require.Len(t, event.Lots, 2)
	assert.Equal(t, date(2020, 1, 2), event.Lots[0].AcquisitionDate)
	assert.InDelta(t, 10, event.Lots[0].Quantity, 1e-9)
	assert.InDelta(t, 2, event.Lots[1].Quantity, 1e-9)

	lots := ledger.Lots("AAPL")
	require.Len(t, lots, 1)
	assert.InDelta(t, 8, lots[0].Quantity, 1e-9)
	assert.InDelta(t, 2.00, lots[0].UnitCostEUR, 1e-9)
}

func TestLedgerDisposeProRataProceeds(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("MSFT", 5, 10.00, date(2020, 1, 2), models.AssetStock))
	require.NoError(t, ledger.Acquire("MSFT", 5, 12.00, date(2020, 2, 2), models.AssetStock))

	event, err := ledger.Dispose("MSFT", 10, 200.00, date(2021, 1, 2), models.KindSale)
	require.NoError(t, err)

	var proceeds float64
	for _, match := range event.Lots {
		proceeds += match.ProceedsEUR
	}
	assert.InDelta(t, 200.00, proceeds, 1e-9)
	assert.InDelta(t, 100.00, event.Lots[0].ProceedsEUR, 1e-9)
}

func TestLedgerDisposeInsufficientIsAtomic(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("TSLA", 5, 100.00, date(2020, 1, 2), models.AssetStock))

	_, err := ledger.Dispose("TSLA", 6, 600.00, date(2021, 1, 2), models.KindSale)
	require.ErrorIs(t, err, ErrInsufficientLots)

	// Nothing consumed on failure.
	assert.InDelta(t, 5, ledger.OpenQuantity("TSLA"), 1e-9)
	lots := ledger.Lots("TSLA")
	require.Len(t, lots, 1)
	assert.InDelta(t, 100.00, lots[0].UnitCostEUR, 1e-9)
}

func TestLedgerInvalidQuantities(t *testing.T) {
	ledger := NewLotLedger()
	assert.ErrorIs(t, ledger.Acquire("AAPL", 0, 1, date(2020, 1, 2), models.AssetStock), ErrInvalidQuantity)
	assert.ErrorIs(t, ledger.Acquire("AAPL", -3, 1, date(2020, 1, 2), models.AssetStock), ErrInvalidQuantity)
	_, err := ledger.Dispose("AAPL", -1, 10, date(2020, 1, 2), models.KindSale)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLedgerConvertConservesBasisAndDates(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("FB", 60, 2.00, date(2019, 5, 1), models.AssetStock))
	require.NoError(t, ledger.Acquire("FB", 40, 2.00, date(2020, 7, 1), models.AssetStock))

	require.NoError(t, ledger.Convert("FB", "META", 1.0, 0, date(2021, 10, 28)))

	assert.Zero(t, ledger.OpenQuantity("FB"))
	lots := ledger.Lots("META")
	require.Len(t, lots, 2)
	assert.Equal(t, date(2019, 5, 1), lots[0].AcquisitionDate)
	assert.Equal(t, date(2020, 7, 1), lots[1].AcquisitionDate)

	var cost float64
	for _, lot := range lots {
		cost += lot.Quantity * lot.UnitCostEUR
	}
	assert.InDelta(t, 200.00, cost, 1e-9)
}

func TestLedgerConvertWithRatioAndCash(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("OLD", 100, 2.00, date(2020, 1, 2), models.AssetStock))

	require.NoError(t, ledger.Convert("OLD", "NEW", 0.5, 50.00, date(2022, 1, 2)))

	lots := ledger.Lots("NEW")
	require.Len(t, lots, 1)
	assert.InDelta(t, 50, lots[0].Quantity, 1e-9)
	// Basis 200 less 50 cash, spread over 50 new shares.
	assert.InDelta(t, 3.00, lots[0].UnitCostEUR, 1e-9)
}

func TestLedgerConvertMergesIntoExistingQueueByDate(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("NEW", 10, 5.00, date(2021, 1, 2), models.AssetStock))
	require.NoError(t, ledger.Acquire("OLD", 10, 1.00, date(2020, 1, 2), models.AssetStock))

	require.NoError(t, ledger.Convert("OLD", "NEW", 1.0, 0, date(2022, 1, 2)))

	lots := ledger.Lots("NEW")
	require.Len(t, lots, 2)
	// Converted lot keeps its older acquisition date and goes first.
	assert.Equal(t, date(2020, 1, 2), lots[0].AcquisitionDate)
	assert.Equal(t, date(2021, 1, 2), lots[1].AcquisitionDate)
}

func TestLedgerDelist(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("WISH", 100, 12.50, date(2021, 2, 1), models.AssetStock))

	event, ok := ledger.Delist("WISH", date(2024, 3, 1))
	require.True(t, ok)
	assert.Equal(t, models.KindDelistingLoss, event.Kind)
	assert.Zero(t, event.ProceedsEUR)
	assert.InDelta(t, -1250.00, event.GainEUR, 1e-9)
	assert.Empty(t, ledger.Tickers())

	_, ok = ledger.Delist("WISH", date(2024, 3, 1))
	assert.False(t, ok)
}

func TestLedgerSnapshotWeightedCost(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("VWCE", 10, 90.00, date(2020, 1, 2), models.AssetETF))
	require.NoError(t, ledger.Acquire("VWCE", 30, 110.00, date(2021, 1, 2), models.AssetETF))

	holdings := ledger.Snapshot()
	require.Len(t, holdings, 1)
	assert.Equal(t, "VWCE", holdings[0].Ticker)
	assert.Equal(t, models.AssetETF, holdings[0].Class)
	assert.InDelta(t, 40, holdings[0].Quantity, 1e-9)
	assert.InDelta(t, 105.00, holdings[0].UnitCostEUR, 1e-9)
	assert.Equal(t, date(2020, 1, 2), holdings[0].OldestAcquisition)
}
