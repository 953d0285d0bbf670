package processors

import (
	"fmt"
	"time"

	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/utils"
)

// DeemedDisposalEngine applies the holding-period rule to ETF lots: once a
// lot has been held for the configured number of years it is treated as sold
// at fair market value and immediately re-acquired at that value, which
// restarts the clock. A lot can cycle through this repeatedly.
type DeemedDisposalEngine struct {
	ledger      *LotLedger
	valuer      Valuer
	periodYears int
}

func NewDeemedDisposalEngine(ledger *LotLedger, valuer Valuer, periodYears int) *DeemedDisposalEngine {
	return &DeemedDisposalEngine{
		ledger:      ledger,
		valuer:      valuer,
		periodYears: periodYears,
	}
}

// dueDate is the lot's next deemed-disposal anniversary.
func (e *DeemedDisposalEngine) dueDate(lot *Lot) time.Time {
	return lot.AcquisitionDate.AddDate(e.periodYears, 0, 0)
}

// RealizeDue synthesizes disposal events for every lot of the ticker whose
// anniversary falls on or before clock, earliest due date first. Each lot is
// handled independently; the re-acquired replacement keeps the consumed
// lot's position in the FIFO queue, since deemed disposal rebases cost, it
// does not change the purchase order.
func (e *DeemedDisposalEngine) RealizeDue(ticker string, clock time.Time) ([]models.RealizedEvent, error) {
	var events []models.RealizedEvent
	for {
		lot, due := e.earliestDue(ticker, clock)
		if lot == nil {
			return events, nil
		}
		valuation, err := e.valuer.UnitValueEUR(ticker, due)
		if err != nil {
			return events, fmt.Errorf("%w: %s on %s: %v", ErrValuationMissing, ticker, utils.FormatDate(due), err)
		}

		cost := lot.Quantity * lot.UnitCostEUR
		proceeds := lot.Quantity * valuation
		events = append(events, models.RealizedEvent{
			Ticker:      ticker,
			Class:       lot.Class,
			Date:        due,
			Kind:        models.KindDeemedDisposal,
			Quantity:    lot.Quantity,
			ProceedsEUR: proceeds,
			CostEUR:     cost,
			GainEUR:     proceeds - cost,
			Lots: []models.LotMatch{{
				AcquisitionDate: lot.AcquisitionDate,
				Quantity:        lot.Quantity,
				UnitCostEUR:     lot.UnitCostEUR,
				CostEUR:         cost,
				ProceedsEUR:     proceeds,
			}},
		})

		// Re-acquisition at gross fair value, clock restarted.
		lot.UnitCostEUR = valuation
		lot.AcquisitionDate = due
	}
}

// earliestDue finds the open ETF lot with the earliest anniversary on or
// before clock, or nil when none is due.
func (e *DeemedDisposalEngine) earliestDue(ticker string, clock time.Time) (*Lot, time.Time) {
	var (
		earliest    *Lot
		earliestDue time.Time
	)
	for _, lot := range e.ledger.queues[ticker] {
		if lot.Class != models.AssetETF {
			continue
		}
		due := e.dueDate(lot)
		if due.After(clock) {
			continue
		}
		if earliest == nil || due.Before(earliestDue) {
			earliest = lot
			earliestDue = due
		}
	}
	return earliest, earliestDue
}
