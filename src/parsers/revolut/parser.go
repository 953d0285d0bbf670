package revolut

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/security/validation"
	"github.com/username/cgtfolio/src/utils"
)

// Required header columns of a Revolut trading account statement export.
var requiredColumns = []string{
	"Date", "Ticker", "Type", "Quantity", "Price per share", "Total Amount", "Currency", "FX Rate",
}

// brokerMigrationMarker appears in the Type column of the share transfers
// Revolut generated when it moved EEA customers between its entities.
const brokerMigrationMarker = "REVOLUT TRADING LTD TO REVOLUT SECURITIES EUROPE UAB"

// RevolutParser implements the parsers.Parser interface for Revolut trading
// account CSV statements.
type RevolutParser struct{}

func NewParser() *RevolutParser {
	return &RevolutParser{}
}

// Parse reads a Revolut CSV statement and converts its rows into canonical
// transactions. Rows it cannot date are skipped with a warning; rows of
// types with no tax consequence are emitted as IGNORED so callers can count
// them.
func (p *RevolutParser) Parse(file io.Reader) ([]models.CanonicalTransaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("revolut parser: failed to read CSV header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, fmt.Errorf("revolut parser: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("revolut parser: failed to read CSV records: %w", err)
	}

	var canonicalTxs []models.CanonicalTransaction
	for i, record := range records {
		rowRef := i + 2 // 1-based, after the header row
		field := func(name string) string {
			idx := columns[name]
			if idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date, err := utils.ParseStatementDate(field("Date"))
		if err != nil {
			logger.L.Warn("Revolut parser: skipping row with unparseable date",
				"row", rowRef, "value", field("Date"))
			continue
		}

		typeStr := validation.StripUnprintable(field("Type"))
		txType, subType := classifyTransactionType(typeStr)

		fxRate, _ := strconv.ParseFloat(field("FX Rate"), 64)

		canonicalTxs = append(canonicalTxs, models.CanonicalTransaction{
			Source:             "revolut",
			TransactionDate:    date,
			Ticker:             field("Ticker"),
			Quantity:           parseAmount(field("Quantity")),
			Price:              parseAmount(field("Price per share")),
			TotalAmount:        parseAmount(field("Total Amount")),
			Currency:           field("Currency"),
			FXRateToEUR:        fxRate,
			TransactionType:    txType,
			TransactionSubType: subType,
			RawText:            typeStr,
			RowRef:             rowRef,
		})
	}

	return canonicalTxs, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		// Spreadsheet exports sometimes carry a BOM or stray control bytes
		// in the header row.
		columns[strings.TrimSpace(validation.StripUnprintable(name))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// classifyTransactionType maps Revolut's free-form Type column onto the
// canonical transaction types. Revolut writes values like "BUY - MARKET",
// "SELL - LIMIT", "DIVIDEND", "MERGER - STOCK", "MERGER - CASH" and
// "TRANSFER FROM ...". Cash top-ups, withdrawals and custody fees have no
// tax consequence.
func classifyTransactionType(typeStr string) (models.TransactionType, string) {
	upper := strings.ToUpper(typeStr)
	switch {
	case strings.Contains(upper, "BUY"):
		return models.TxBuy, ""
	case strings.Contains(upper, "SELL"):
		return models.TxSell, ""
	case strings.Contains(upper, "DIVIDEND"):
		return models.TxDividend, ""
	case strings.Contains(upper, "MERGER"):
		if strings.Contains(upper, "STOCK") {
			return models.TxMerger, models.SubTypeMergerStock
		}
		if strings.Contains(upper, "CASH") {
			return models.TxMerger, models.SubTypeMergerCash
		}
		return models.TxMerger, ""
	case strings.Contains(upper, "TRANSFER") && strings.Contains(upper, brokerMigrationMarker):
		return models.TxTransfer, ""
	default:
		return models.TxIgnored, ""
	}
}

var (
	currencySymbolRe = regexp.MustCompile(`[€$£¥₹]`)
	numericRe        = regexp.MustCompile(`-?[\d,]*\.?\d+`)
)

// parseAmount extracts the numeric value from an amount cell. Revolut
// formats amounts with currency symbols and thousands separators, e.g.
// "$1,234.56" or "€12.30".
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	cleaned := currencySymbolRe.ReplaceAllString(s, "")
	match := numericRe.FindString(cleaned)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", "")
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return value
}
