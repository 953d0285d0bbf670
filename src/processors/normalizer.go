package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
)

// TransactionNormalizer converts canonical statement rows into validated,
// EUR-denominated transactions. It trusts the classification the parser
// already performed and only enriches and validates.
type TransactionNormalizer struct{}

func NewTransactionNormalizer() *TransactionNormalizer { return &TransactionNormalizer{} }

// Normalize returns the accepted transactions and the rows it rejected.
// A non-EUR row without an FX rate is rejected and reported; the rest of
// the batch continues. IGNORED rows (fees, cash movements) are filtered out
// here, before the engine ever sees them.
func (n *TransactionNormalizer) Normalize(canonical []models.CanonicalTransaction) ([]models.Transaction, []models.RejectedTransaction) {
	var (
		accepted []models.Transaction
		rejected []models.RejectedTransaction
	)
	for _, row := range canonical {
		if row.TransactionType == models.TxIgnored {
			continue
		}
		if row.Quantity < 0 {
			row.Quantity = -row.Quantity
		}

		rate := row.FXRateToEUR
		if strings.EqualFold(row.Currency, "EUR") {
			rate = 1.0
		} else if rate <= 0 {
			logger.L.Warn("Rejecting transaction without FX rate",
				"ticker", row.Ticker, "date", row.TransactionDate, "row", row.RowRef, "currency", row.Currency)
			rejected = append(rejected, models.RejectedTransaction{
				Date:   row.TransactionDate,
				Ticker: row.Ticker,
				Source: row.Source,
				RowRef: row.RowRef,
				Reason: fmt.Sprintf("%v (%s)", ErrCurrencyConversionMissing, row.Currency),
			})
			continue
		}

		accepted = append(accepted, models.Transaction{
			Date:        row.TransactionDate,
			Ticker:      strings.ToUpper(strings.TrimSpace(row.Ticker)),
			Type:        row.TransactionType,
			SubType:     row.TransactionSubType,
			Quantity:    row.Quantity,
			PriceEUR:    row.Price * rate,
			AmountEUR:   row.TotalAmount * rate,
			Currency:    strings.ToUpper(row.Currency),
			FXRateToEUR: rate,
			Source:      row.Source,
			RawText:     row.RawText,
			RowRef:      row.RowRef,
			HashID:      generateHash(row),
		})
	}
	return accepted, rejected
}

// generateHash creates a stable content hash for deduplication across
// repeated uploads of overlapping statement files.
func generateHash(row models.CanonicalTransaction) string {
	input := fmt.Sprintf("%s|%s|%s|%f|%f|%s",
		row.TransactionDate.Format(time.RFC3339), row.Ticker, row.TransactionType,
		row.Quantity, row.TotalAmount, row.RawText)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
