package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cgtfolio/src/database"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/parsers"
	"github.com/username/cgtfolio/src/processors"
	"github.com/username/cgtfolio/src/utils"
)

const (
	// Full engine pass per user; invalidated on every data change.
	ckRunResult = "res_engine_run_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reportServiceImpl struct {
	normalizer        *processors.TransactionNormalizer
	classifier        ClassifierService
	valuer            ValuationService
	regime            processors.RegimeConfig
	deemedPeriodYears int
	reportCache       *cache.Cache
}

func NewReportService(
	normalizer *processors.TransactionNormalizer,
	classifier ClassifierService,
	valuer ValuationService,
	regime processors.RegimeConfig,
	deemedPeriodYears int,
	reportCache *cache.Cache,
) ReportService {
	return &reportServiceImpl{
		normalizer:        normalizer,
		classifier:        classifier,
		valuer:            valuer,
		regime:            regime,
		deemedPeriodYears: deemedPeriodYears,
		reportCache:       reportCache,
	}
}

func (s *reportServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, source string) (*UploadResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", userID, "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	canonicalTxs, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	accepted, rejected := s.normalizer.Normalize(canonicalTxs)

	imported, duplicates, err := s.insertTransactions(userID, accepted)
	if err != nil {
		return nil, err
	}

	s.InvalidateUserCache(userID)

	runResult, err := s.getRunResult(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	logger.L.Info("ProcessUpload END", "userID", userID,
		"imported", imported, "duplicates", duplicates, "rejected", len(rejected),
		"duration", time.Since(overallStartTime))
	return &UploadResult{
		Imported:     imported,
		Duplicates:   duplicates,
		Rejected:     rejected,
		YearlyStates: runResult.YearlyStates,
	}, nil
}

func (s *reportServiceImpl) insertTransactions(userID int64, txs []models.Transaction) (imported, duplicates int, err error) {
	if len(txs) == 0 {
		return 0, 0, nil
	}
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO transactions (user_id, date, source, ticker, transaction_type, transaction_subtype, quantity, price_eur, amount_eur, currency, fx_rate, row_ref, raw_text, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		_, err := stmt.Exec(userID, utils.FormatDate(tx.Date), tx.Source, tx.Ticker, string(tx.Type), tx.SubType,
			tx.Quantity, tx.PriceEUR, tx.AmountEUR, tx.Currency, tx.FXRateToEUR, tx.RowRef, tx.RawText, tx.HashID)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on upload", "userID", userID, "hash_id", tx.HashID)
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("error inserting transaction (row %d): %w", tx.RowRef, err)
		}
		imported++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing transactions: %w", err)
	}
	return imported, duplicates, nil
}

// InvalidateUserCache clears the cached engine run for a user, forcing a
// complete recalculation on the next request.
func (s *reportServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckRunResult, userID))
	logger.L.Info("Invalidated engine run cache for user", "userID", userID)
}

// getRunResult returns the cached engine pass for the user, recalculating
// from the database on a miss.
func (s *reportServiceImpl) getRunResult(userID int64) (*processors.RunResult, error) {
	cacheKey := fmt.Sprintf(ckRunResult, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for engine run", "userID", userID)
		return cached.(*processors.RunResult), nil
	}

	logger.L.Info("Cache miss for engine run, recalculating from DB", "userID", userID)
	transactions, err := fetchUserTransactions(userID)
	if err != nil {
		return nil, err
	}

	engine := processors.NewTaxEngine(s.classifier, s.valuer, s.regime, s.deemedPeriodYears, time.Now())
	runResult, err := engine.Run(transactions)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, runResult, DefaultCacheExpiration)
	return runResult, nil
}

func (s *reportServiceImpl) GetYearlyTaxStates(userID int64) ([]models.YearlyTaxState, error) {
	runResult, err := s.getRunResult(userID)
	if err != nil {
		return nil, err
	}
	return runResult.YearlyStates, nil
}

func (s *reportServiceImpl) GetDividendReport(userID int64) ([]DividendYearRow, error) {
	runResult, err := s.getRunResult(userID)
	if err != nil {
		return nil, err
	}
	var rows []DividendYearRow
	for _, state := range runResult.YearlyStates {
		if state.Dividends.GrossEUR == 0 {
			continue
		}
		rows = append(rows, DividendYearRow{Year: state.Year, Dividends: state.Dividends})
	}
	return rows, nil
}

func (s *reportServiceImpl) GetTickerReport(userID int64, ticker string) (*TickerReport, error) {
	runResult, err := s.getRunResult(userID)
	if err != nil {
		return nil, err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	report := &TickerReport{
		Ticker:    ticker,
		Realized:  runResult.RealizedByTicker[ticker],
		Dividends: runResult.DividendsByTicker[ticker],
	}
	for i := range runResult.Holdings {
		if runResult.Holdings[i].Ticker == ticker {
			report.Holding = &runResult.Holdings[i]
			break
		}
	}
	return report, nil
}

func (s *reportServiceImpl) GetHoldings(userID int64) ([]models.HoldingSnapshot, error) {
	runResult, err := s.getRunResult(userID)
	if err != nil {
		return nil, err
	}
	return runResult.Holdings, nil
}

func (s *reportServiceImpl) GetTransactions(userID int64) ([]models.Transaction, error) {
	return fetchUserTransactions(userID)
}

func (s *reportServiceImpl) DeleteTransactions(userID int64) error {
	_, err := database.DB.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("error deleting transactions for userID %d: %w", userID, err)
	}
	s.InvalidateUserCache(userID)
	return nil
}

func fetchUserTransactions(userID int64) ([]models.Transaction, error) {
	logger.L.Debug("Fetching transactions from DB", "userID", userID)
	rows, err := database.DB.Query(`SELECT id, date, source, ticker, transaction_type, transaction_subtype, quantity, price_eur, amount_eur, currency, fx_rate, row_ref, raw_text, hash_id FROM transactions WHERE user_id = ? ORDER BY date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var (
			tx      models.Transaction
			dateStr string
			txType  string
		)
		scanErr := rows.Scan(&tx.ID, &dateStr, &tx.Source, &tx.Ticker, &txType, &tx.SubType,
			&tx.Quantity, &tx.PriceEUR, &tx.AmountEUR, &tx.Currency, &tx.FXRateToEUR, &tx.RowRef, &tx.RawText, &tx.HashID)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, scanErr)
		}
		date, parseErr := utils.ParseStatementDate(dateStr)
		if parseErr != nil {
			return nil, fmt.Errorf("error parsing stored date %q for userID %d: %w", dateStr, userID, parseErr)
		}
		tx.Date = date
		tx.Type = models.TransactionType(txType)
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows for userID %d: %w", userID, err)
	}
	logger.L.Info("DB fetch complete.", "userID", userID, "transactionCount", len(transactions))
	return transactions, nil
}
