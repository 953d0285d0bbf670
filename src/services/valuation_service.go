package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/utils"
)

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// valuationServiceImpl prices tickers on historical dates from Yahoo's chart
// endpoint. Results are cached; the same anniversary date is requested for
// every lot of a ticker, on every recalculation.
type valuationServiceImpl struct {
	httpClient http.Client
	memCache   *cache.Cache
}

func NewValuationService() ValuationService {
	return &valuationServiceImpl{
		httpClient: http.Client{Timeout: 20 * time.Second},
		memCache:   cache.New(cache.NoExpiration, 0),
	}
}

// UnitValueEUR returns the closing price of the ticker on the given date,
// converted to EUR. When the date falls on a non-trading day the most recent
// close inside the preceding week is used.
func (s *valuationServiceImpl) UnitValueEUR(ticker string, date time.Time) (float64, error) {
	cacheKey := ticker + "|" + utils.FormatDate(date)
	if cached, found := s.memCache.Get(cacheKey); found {
		return cached.(float64), nil
	}

	price, currency, err := s.fetchClose(ticker, date)
	if err != nil {
		return 0, err
	}

	// Yahoo quotes London listings in pence.
	if currency == "GBp" {
		price = price / 100
		currency = "GBP"
	}

	priceEUR := price
	if strings.ToUpper(currency) != "EUR" {
		rate, err := s.eurRate(currency, date)
		if err != nil {
			return 0, fmt.Errorf("converting %s close for %s to EUR: %w", currency, ticker, err)
		}
		priceEUR = price / rate
	}

	s.memCache.Set(cacheKey, priceEUR, cache.NoExpiration)
	logger.L.Debug("Historical valuation resolved", "ticker", ticker, "date", utils.FormatDate(date), "priceEUR", priceEUR)
	return priceEUR, nil
}

// eurRate returns how many units of the currency one euro bought on the
// given date, via Yahoo's EURxxx=X synthetic pairs.
func (s *valuationServiceImpl) eurRate(currency string, date time.Time) (float64, error) {
	pair := fmt.Sprintf("EUR%s=X", strings.ToUpper(currency))
	rate, _, err := s.fetchClose(pair, date)
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return 0, fmt.Errorf("zero exchange rate for %s", pair)
	}
	return rate, nil
}

// fetchClose queries the v8 chart endpoint for the last close on or before
// the date, looking back up to a week to skip weekends and holidays.
func (s *valuationServiceImpl) fetchClose(symbol string, date time.Time) (float64, string, error) {
	from := date.AddDate(0, 0, -7)
	to := date.AddDate(0, 0, 1)
	chartURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		symbol, from.Unix(), to.Unix())

	req, err := http.NewRequest("GET", chartURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to call Yahoo chart API for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, "", fmt.Errorf("yahoo chart API returned non-OK status %d for %s. Body: %s", resp.StatusCode, symbol, string(bodyBytes))
	}

	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return 0, "", fmt.Errorf("failed to decode Yahoo chart response for %s: %w", symbol, err)
	}
	if chartData.Chart.Error != nil || len(chartData.Chart.Result) == 0 {
		return 0, "", fmt.Errorf("yahoo chart API returned an error or no result for %s", symbol)
	}

	result := chartData.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return 0, "", fmt.Errorf("no quote data for %s around %s", symbol, utils.FormatDate(date))
	}
	closes := result.Indicators.Quote[0].Close

	// Walk backwards for the last non-zero close on or before the date.
	cutoff := date.Unix() + 24*60*60
	for i := len(result.Timestamp) - 1; i >= 0; i-- {
		if result.Timestamp[i] >= cutoff || i >= len(closes) {
			continue
		}
		if closes[i] > 0 {
			return closes[i], result.Meta.Currency, nil
		}
	}
	return 0, "", fmt.Errorf("no usable close for %s around %s", symbol, utils.FormatDate(date))
}
