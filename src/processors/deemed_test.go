package processors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cgtfolio/src/models"
)

// stubValuer returns a fixed unit value per ticker, or an error when the
// ticker is absent.
type stubValuer struct {
	values map[string]float64
}

func (v *stubValuer) UnitValueEUR(ticker string, date time.Time) (float64, error) {
	if value, ok := v.values[ticker]; ok {
		return value, nil
	}
	return 0, errors.New("no data")
}

func TestDeemedDisposalRebasesLot(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("VWCE", 10, 50.00, date(2015, 1, 10), models.AssetETF))

	engine := NewDeemedDisposalEngine(ledger, &stubValuer{values: map[string]float64{"VWCE": 80.00}}, 8)
	events, err := engine.RealizeDue("VWCE", date(2023, 6, 1))
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, models.KindDeemedDisposal, event.Kind)
	assert.Equal(t, date(2023, 1, 10), event.Date)
	assert.InDelta(t, 300.00, event.GainEUR, 1e-9) // 10 * (80 - 50)

	// The position survives, rebased at the valuation with a fresh clock.
	lots := ledger.Lots("VWCE")
	require.Len(t, lots, 1)
	assert.InDelta(t, 10, lots[0].Quantity, 1e-9)
	assert.InDelta(t, 80.00, lots[0].UnitCostEUR, 1e-9)
	assert.Equal(t, date(2023, 1, 10), lots[0].AcquisitionDate)

	// Nothing further due at the same clock.
	events, err = engine.RealizeDue("VWCE", date(2023, 6, 1))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeemedDisposalRepeatedCycles(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("VWCE", 5, 50.00, date(2015, 3, 1), models.AssetETF))

	engine := NewDeemedDisposalEngine(ledger, &stubValuer{values: map[string]float64{"VWCE": 60.00}}, 2)
	events, err := engine.RealizeDue("VWCE", date(2021, 12, 31))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, date(2017, 3, 1), events[0].Date)
	assert.Equal(t, date(2019, 3, 1), events[1].Date)
	assert.Equal(t, date(2021, 3, 1), events[2].Date)

	// First cycle gains, subsequent cycles flat at the same valuation.
	assert.InDelta(t, 50.00, events[0].GainEUR, 1e-9)
	assert.InDelta(t, 0.00, events[1].GainEUR, 1e-9)
	assert.InDelta(t, 0.00, events[2].GainEUR, 1e-9)
}

func TestDeemedDisposalIgnoresStockLots(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("AAPL", 10, 50.00, date(2010, 1, 2), models.AssetStock))

	engine := NewDeemedDisposalEngine(ledger, &stubValuer{values: map[string]float64{"AAPL": 999.00}}, 8)
	events, err := engine.RealizeDue("AAPL", date(2030, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeemedDisposalNotDueYet(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("VWCE", 10, 50.00, date(2020, 1, 10), models.AssetETF))

	engine := NewDeemedDisposalEngine(ledger, &stubValuer{values: map[string]float64{"VWCE": 80.00}}, 8)
	events, err := engine.RealizeDue("VWCE", date(2028, 1, 9))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeemedDisposalValuationMissing(t *testing.T) {
	ledger := NewLotLedger()
	require.NoError(t, ledger.Acquire("VWCE", 10, 50.00, date(2015, 1, 10), models.AssetETF))

	engine := NewDeemedDisposalEngine(ledger, &stubValuer{values: map[string]float64{}}, 8)
	_, err := engine.RealizeDue("VWCE", date(2023, 6, 1))
	require.ErrorIs(t, err, ErrValuationMissing)

	// Lot untouched when the valuation cannot be priced.
	lots := ledger.Lots("VWCE")
	require.Len(t, lots, 1)
	assert.InDelta(t, 50.00, lots[0].UnitCostEUR, 1e-9)
	assert.Equal(t, date(2015, 1, 10), lots[0].AcquisitionDate)
}
