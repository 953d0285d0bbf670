package processors

import "errors"

// Engine failures. All of them signal data problems the user must fix
// upstream; none are retried and none are silently tolerated.
var (
	// ErrInvalidQuantity rejects acquisitions and disposals of non-positive size.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientLots means a disposal exceeds the open quantity for a
	// ticker. This indicates an incomplete transaction history (missing
	// earlier years); zero-filling it would understate gains.
	ErrInsufficientLots = errors.New("insufficient open lots")

	// ErrNonMonotonicYear rejects out-of-order year processing, which would
	// corrupt the loss carry-forward register.
	ErrNonMonotonicYear = errors.New("tax years must be processed in ascending order")

	// ErrUnknownTicker means the classifier has no entry for a ticker and
	// none could be resolved. Ledger operations must not proceed on a guess.
	ErrUnknownTicker = errors.New("ticker not classified")

	// ErrCurrencyConversionMissing rejects a non-EUR row without an FX rate.
	// Fatal to that row only; the rest of the run continues.
	ErrCurrencyConversionMissing = errors.New("missing FX rate for non-EUR transaction")

	// ErrValuationMissing means no fair-market valuation is available for a
	// deemed-disposal date.
	ErrValuationMissing = errors.New("no fair-market valuation available")
)
