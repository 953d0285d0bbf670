package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/cgtfolio/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
)

// UploadResult summarizes one statement upload.
type UploadResult struct {
	Imported     int                          `json:"imported"`
	Duplicates   int                          `json:"duplicates"`
	Rejected     []models.RejectedTransaction `json:"rejected,omitempty"`
	YearlyStates []models.YearlyTaxState      `json:"yearly_states"`
}

// DividendYearRow is one year of the dividend income report.
type DividendYearRow struct {
	Year      int                       `json:"year"`
	Dividends models.DividendTaxSummary `json:"dividends"`
}

// TickerReport is the per-ticker drill-down: every realized event and
// dividend booked against the ticker plus its open position, if any.
type TickerReport struct {
	Ticker    string                  `json:"ticker"`
	Realized  []models.RealizedEvent  `json:"realized"`
	Dividends []models.DividendEvent  `json:"dividends"`
	Holding   *models.HoldingSnapshot `json:"holding,omitempty"`
}

// ClassifierService resolves ticker metadata. It satisfies
// processors.Classifier.
type ClassifierService interface {
	Resolve(ticker string) (models.TickerInfo, error)
}

// ValuationService supplies historical EUR unit values. It satisfies
// processors.Valuer.
type ValuationService interface {
	UnitValueEUR(ticker string, date time.Time) (float64, error)
}

// ReportService is the core processing logic behind the API: statement
// ingestion, the computation pass and the report views derived from it.
type ReportService interface {
	ProcessUpload(fileReader io.Reader, userID int64, source string) (*UploadResult, error)
	GetYearlyTaxStates(userID int64) ([]models.YearlyTaxState, error)
	GetDividendReport(userID int64) ([]DividendYearRow, error)
	GetTickerReport(userID int64, ticker string) (*TickerReport, error)
	GetHoldings(userID int64) ([]models.HoldingSnapshot, error)
	GetTransactions(userID int64) ([]models.Transaction, error)
	DeleteTransactions(userID int64) error
	InvalidateUserCache(userID int64)
}
