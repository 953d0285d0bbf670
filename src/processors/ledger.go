package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/utils"
)

// Lot is one open acquisition: quantity still held and its EUR unit cost.
// Lots belong to exactly one ticker queue and are never shared.
type Lot struct {
	Quantity        float64
	UnitCostEUR     float64
	AcquisitionDate time.Time
	Class           models.AssetClass
}

// LotLedger keeps one FIFO queue of open lots per ticker. Disposals always
// consume the oldest lot first. The ledger spans the entire multi-file
// history; FIFO correctness breaks if years are processed in isolation.
type LotLedger struct {
	queues map[string][]*Lot
}

func NewLotLedger() *LotLedger {
	return &LotLedger{queues: make(map[string][]*Lot)}
}

// Acquire appends a new lot to the ticker's queue.
func (l *LotLedger) Acquire(ticker string, quantity, unitCostEUR float64, date time.Time, class models.AssetClass) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: acquire %s qty %.4f on %s", ErrInvalidQuantity, ticker, quantity, utils.FormatDate(date))
	}
	l.queues[ticker] = append(l.queues[ticker], &Lot{
		Quantity:        quantity,
		UnitCostEUR:     unitCostEUR,
		AcquisitionDate: date,
		Class:           class,
	})
	return nil
}

// Dispose matches a disposal against the ticker's queue, oldest lot first.
// The cost basis is the quantity-weighted sum of the consumed lots; proceeds
// are allocated pro-rata across matched lots for per-lot reporting only. The
// failure is atomic: on ErrInsufficientLots no lot is mutated.
func (l *LotLedger) Dispose(ticker string, quantity, proceedsEUR float64, date time.Time, kind models.RealizedKind) (models.RealizedEvent, error) {
	if quantity <= 0 {
		return models.RealizedEvent{}, fmt.Errorf("%w: dispose %s qty %.4f on %s", ErrInvalidQuantity, ticker, quantity, utils.FormatDate(date))
	}
	if open := l.OpenQuantity(ticker); open+1e-9 < quantity {
		return models.RealizedEvent{}, fmt.Errorf("%w: %s on %s requested %.4f, open %.4f",
			ErrInsufficientLots, ticker, utils.FormatDate(date), quantity, open)
	}

	queue := l.queues[ticker]
	var (
		matches   []models.LotMatch
		totalCost float64
		remaining = quantity
		class     = queue[0].Class
	)
	for remaining > 0 && len(queue) > 0 {
		lot := queue[0]
		matched := remaining
		if lot.Quantity < matched {
			matched = lot.Quantity
		}
		cost := matched * lot.UnitCostEUR
		matches = append(matches, models.LotMatch{
			AcquisitionDate: lot.AcquisitionDate,
			Quantity:        matched,
			UnitCostEUR:     lot.UnitCostEUR,
			CostEUR:         cost,
			ProceedsEUR:     proceedsEUR * (matched / quantity),
		})
		totalCost += cost
		remaining -= matched
		lot.Quantity -= matched
		if utils.NearlyZero(lot.Quantity) {
			queue = queue[1:]
		}
	}
	l.queues[ticker] = queue
	if len(queue) == 0 {
		delete(l.queues, ticker)
	}

	return models.RealizedEvent{
		Ticker:      ticker,
		Class:       class,
		Date:        date,
		Kind:        kind,
		Quantity:    quantity,
		ProceedsEUR: proceedsEUR,
		CostEUR:     totalCost,
		GainEUR:     proceedsEUR - totalCost,
		Lots:        matches,
	}, nil
}

// Convert replaces every open lot of oldTicker with a lot of newTicker,
// scaling quantity by ratio and preserving the original acquisition date so
// the deemed-disposal clock survives the merger. Total cost basis is
// conserved except for any cash component received, which reduces basis
// pro-rata by each lot's share of the total.
func (l *LotLedger) Convert(oldTicker, newTicker string, ratio, cashComponentEUR float64, date time.Time) error {
	if ratio <= 0 {
		return fmt.Errorf("%w: convert %s->%s ratio %.4f", ErrInvalidQuantity, oldTicker, newTicker, ratio)
	}
	oldLots := l.queues[oldTicker]
	if len(oldLots) == 0 {
		return nil
	}

	var totalCost float64
	for _, lot := range oldLots {
		totalCost += lot.Quantity * lot.UnitCostEUR
	}

	converted := make([]*Lot, 0, len(oldLots))
	for _, lot := range oldLots {
		lotCost := lot.Quantity * lot.UnitCostEUR
		cashShare := 0.0
		if totalCost > 0 {
			cashShare = cashComponentEUR * (lotCost / totalCost)
		}
		newQuantity := lot.Quantity * ratio
		converted = append(converted, &Lot{
			Quantity:        newQuantity,
			UnitCostEUR:     (lotCost - cashShare) / newQuantity,
			AcquisitionDate: lot.AcquisitionDate,
			Class:           lot.Class,
		})
	}
	delete(l.queues, oldTicker)
	l.queues[newTicker] = mergeByAcquisition(l.queues[newTicker], converted)
	return nil
}

// Delist closes every remaining open lot of the ticker at zero proceeds.
// The second return is false when the ticker has no open lots.
func (l *LotLedger) Delist(ticker string, date time.Time) (models.RealizedEvent, bool) {
	open := l.OpenQuantity(ticker)
	if utils.NearlyZero(open) {
		return models.RealizedEvent{}, false
	}
	event, err := l.Dispose(ticker, open, 0, date, models.KindDelistingLoss)
	if err != nil {
		// Quantity came from the queue itself; a failure here is impossible.
		return models.RealizedEvent{}, false
	}
	return event, true
}

// OpenQuantity returns the total still-open quantity for a ticker.
func (l *LotLedger) OpenQuantity(ticker string) float64 {
	var total float64
	for _, lot := range l.queues[ticker] {
		total += lot.Quantity
	}
	return total
}

// Lots returns a copy of the ticker's open lots in FIFO order.
func (l *LotLedger) Lots(ticker string) []Lot {
	lots := make([]Lot, 0, len(l.queues[ticker]))
	for _, lot := range l.queues[ticker] {
		lots = append(lots, *lot)
	}
	return lots
}

// Tickers returns every ticker with open lots, sorted for determinism.
func (l *LotLedger) Tickers() []string {
	tickers := make([]string, 0, len(l.queues))
	for ticker := range l.queues {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Snapshot summarizes every open position: quantity and weighted unit cost.
func (l *LotLedger) Snapshot() []models.HoldingSnapshot {
	var holdings []models.HoldingSnapshot
	for _, ticker := range l.Tickers() {
		queue := l.queues[ticker]
		var quantity, cost float64
		oldest := queue[0].AcquisitionDate
		for _, lot := range queue {
			quantity += lot.Quantity
			cost += lot.Quantity * lot.UnitCostEUR
			if lot.AcquisitionDate.Before(oldest) {
				oldest = lot.AcquisitionDate
			}
		}
		holdings = append(holdings, models.HoldingSnapshot{
			Ticker:            ticker,
			Class:             queue[0].Class,
			Quantity:          quantity,
			UnitCostEUR:       cost / quantity,
			CostEUR:           cost,
			OldestAcquisition: oldest,
		})
	}
	return holdings
}

// mergeByAcquisition interleaves two FIFO queues keeping acquisition-date
// order, so converted lots take their rightful place in the target queue.
func mergeByAcquisition(a, b []*Lot) []*Lot {
	merged := make([]*Lot, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].AcquisitionDate.After(b[j].AcquisitionDate) {
			merged = append(merged, b[j])
			j++
		} else {
			merged = append(merged, a[i])
			i++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
