package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/model"
	"github.com/username/cgtfolio/src/models"
	"golang.org/x/net/publicsuffix"
)

const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// domicileMap maps Yahoo's country names to the ISO codes the dividend
// credit rules key on.
var domicileMap = map[string]string{
	"Ireland":        "IE",
	"United States":  "US",
	"Germany":        "DE",
	"United Kingdom": "GB",
	"Netherlands":    "NL",
	"France":         "FR",
	"Switzerland":    "CH",
}

// Structs for Yahoo Finance API responses.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			QuoteType          string  `json:"quoteType"`
			Currency           string  `json:"currency"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

type yahooProfileResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Country string `json:"country"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteSummary"`
}

// classifierServiceImpl resolves ticker metadata with three tiers: an
// in-memory cache, the ticker_info table (which also carries the manually
// maintained merger and delisting facts Yahoo cannot know), and Yahoo
// Finance for tickers seen for the first time.
type classifierServiceImpl struct {
	db         *sql.DB
	memCache   *cache.Cache
	httpClient http.Client
	crumb      string
}

func NewClassifierService(db *sql.DB) ClassifierService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	s := &classifierServiceImpl{
		db:       db,
		memCache: cache.New(24*time.Hour, 1*time.Hour),
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
	}

	if err := s.initializeYahooSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Ticker classification may fail.", "error", err)
	}
	return s
}

// initializeYahooSession visits a Yahoo Finance page to get necessary cookies and the crumb.
func (s *classifierServiceImpl) initializeYahooSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	initURL := "https://finance.yahoo.com/quote/VHYL.L"
	req, err := http.NewRequest("GET", initURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	s.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// Resolve returns the metadata for a ticker, fetching and persisting it on
// first sight. Rows already present in ticker_info are authoritative; they
// may carry curated merger mappings and delisting dates.
func (s *classifierServiceImpl) Resolve(ticker string) (models.TickerInfo, error) {
	if cached, found := s.memCache.Get(ticker); found {
		return cached.(models.TickerInfo), nil
	}

	stored, err := model.GetTickerInfo(s.db, ticker)
	if err != nil {
		return models.TickerInfo{}, fmt.Errorf("reading ticker_info for %s: %w", ticker, err)
	}
	if stored != nil {
		s.memCache.Set(ticker, *stored, cache.DefaultExpiration)
		return *stored, nil
	}

	info, err := s.classifyViaYahoo(ticker)
	if err != nil {
		return models.TickerInfo{}, err
	}
	if err := model.UpsertTickerInfo(s.db, &info); err != nil {
		logger.L.Warn("Failed to persist ticker classification", "ticker", ticker, "error", err)
	}
	s.memCache.Set(ticker, info, cache.DefaultExpiration)
	return info, nil
}

// classifyViaYahoo determines asset class, currency and domicile for a
// ticker never seen before. A freshly classified ticker is assumed active
// with no merger history; those facts are curated in ticker_info.
func (s *classifierServiceImpl) classifyViaYahoo(ticker string) (models.TickerInfo, error) {
	if s.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := s.initializeYahooSession(); err != nil {
			return models.TickerInfo{}, fmt.Errorf("failed to re-initialize Yahoo session: %w", err)
		}
	}

	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s", ticker, s.crumb)
	var quoteData yahooQuoteResponse
	if err := s.getJSON(quoteURL, &quoteData); err != nil {
		return models.TickerInfo{}, fmt.Errorf("yahoo quote lookup for %s: %w", ticker, err)
	}
	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return models.TickerInfo{}, fmt.Errorf("yahoo quote API returned an error or no result for ticker %s", ticker)
	}
	quote := quoteData.QuoteResponse.Result[0]

	class := models.AssetStock
	if quote.QuoteType == "ETF" {
		class = models.AssetETF
	}

	domicile := "US"
	profileURL := fmt.Sprintf("https://query2.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=assetProfile&crumb=%s", ticker, s.crumb)
	var profileData yahooProfileResponse
	if err := s.getJSON(profileURL, &profileData); err != nil {
		logger.L.Warn("Yahoo profile lookup failed, defaulting domicile", "ticker", ticker, "error", err)
	} else if len(profileData.QuoteSummary.Result) > 0 {
		if code, ok := domicileMap[profileData.QuoteSummary.Result[0].AssetProfile.Country]; ok {
			domicile = code
		}
	}

	return models.TickerInfo{
		Ticker:          ticker,
		Class:           class,
		Currency:        quote.Currency,
		Active:          true,
		ConversionRatio: 1.0,
		Domicile:        domicile,
	}, nil
}

func (s *classifierServiceImpl) getJSON(url string, target interface{}) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("yahoo API returned non-OK status %d. Body: %s", resp.StatusCode, string(bodyBytes))
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
