package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Marginal income-tax rates the regime recognizes.
var allowedMarginalRates = map[int]bool{20: true, 40: true, 45: true}

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxUploadSizeBytes int64

	// Tax regime. Defaults follow the current Irish rules.
	ExemptionAmountEUR        float64
	StockCGTRate              float64
	ETFExitTaxRate            float64
	MarginalIncomeTaxRatePct  int
	DomesticDividendCreditPct float64
	ForeignDividendCreditPct  float64
	DeemedDisposalPeriodYears int
}

var Cfg *AppConfig

func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: no .env file found, relying on OS environment variables and defaults.")
	} else {
		log.Println(".env file loaded successfully.")
	}

	jwtSecret := getEnv("JWT_SECRET", "insecure-development-only-jwt-secret-of-32-bytes!")
	if jwtSecret == "insecure-development-only-jwt-secret-of-32-bytes!" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET for production.")
	}

	marginalRate := getEnvAsInt("MARGINAL_INCOME_TAX_RATE", 40)
	if !allowedMarginalRates[marginalRate] {
		log.Printf("WARNING: MARGINAL_INCOME_TAX_RATE %d not one of 20/40/45, using 40.", marginalRate)
		marginalRate = 40
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./cgtfolio.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          jwtSecret,
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),

		ExemptionAmountEUR:        getEnvAsFloat("EXEMPTION_AMOUNT_EUR", 1270.0),
		StockCGTRate:              getEnvAsFloat("STOCK_CGT_RATE", 0.33),
		ETFExitTaxRate:            getEnvAsFloat("ETF_EXIT_TAX_RATE", 0.41),
		MarginalIncomeTaxRatePct:  marginalRate,
		DomesticDividendCreditPct: getEnvAsFloat("DOMESTIC_DIVIDEND_CREDIT_RATE", 0.25),
		ForeignDividendCreditPct:  getEnvAsFloat("FOREIGN_DIVIDEND_CREDIT_RATE", 0.15),
		DeemedDisposalPeriodYears: getEnvAsInt("DEEMED_DISPOSAL_PERIOD_YEARS", 8),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, MarginalRate=%d%%",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.MarginalIncomeTaxRatePct)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback)
	return fallback
}
