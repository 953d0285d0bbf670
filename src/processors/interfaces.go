package processors

import (
	"time"

	"github.com/username/cgtfolio/src/models"
)

// Classifier resolves a ticker to its asset class and merger metadata. The
// engine never performs the lookup itself; implementations live behind this
// interface together with their caches.
type Classifier interface {
	Resolve(ticker string) (models.TickerInfo, error)
}

// Valuer supplies the fair-market EUR unit value of a ticker on a given
// date, used to price deemed disposals. Implementations must not be called
// from inside the ledger; the engine injects values at the boundary.
type Valuer interface {
	UnitValueEUR(ticker string, date time.Time) (float64, error)
}
