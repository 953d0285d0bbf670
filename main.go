package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cgtfolio/src/config"
	"github.com/username/cgtfolio/src/database"
	"github.com/username/cgtfolio/src/handlers"
	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/processors"
	"github.com/username/cgtfolio/src/security"
	"github.com/username/cgtfolio/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Cgtfolio backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	logger.L.Info("Report cache initialized.")

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	userHandler := handlers.NewUserHandler(authService)

	regime := processors.RegimeConfig{
		ExemptionAmountEUR:        config.Cfg.ExemptionAmountEUR,
		StockCGTRate:              config.Cfg.StockCGTRate,
		ETFExitTaxRate:            config.Cfg.ETFExitTaxRate,
		MarginalIncomeTaxRatePct:  config.Cfg.MarginalIncomeTaxRatePct,
		DomesticDividendCreditPct: config.Cfg.DomesticDividendCreditPct,
		ForeignDividendCreditPct:  config.Cfg.ForeignDividendCreditPct,
	}

	classifierService := services.NewClassifierService(database.DB)
	valuationService := services.NewValuationService()
	reportService := services.NewReportService(
		processors.NewTransactionNormalizer(),
		classifierService,
		valuationService,
		regime,
		config.Cfg.DeemedDisposalPeriodYears,
		reportCache,
	)

	uploadHandler := handlers.NewUploadHandler(reportService)
	reportHandler := handlers.NewReportHandler(reportService)
	portfolioHandler := handlers.NewPortfolioHandler(reportService)
	txHandler := handlers.NewTransactionHandler(reportService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)
	apiRouter.HandleFunc("POST /api/auth/refresh", userHandler.RefreshTokenHandler)
	apiRouter.HandleFunc("POST /api/auth/logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))

	apiRouter.HandleFunc("POST /api/upload", userHandler.AuthMiddleware(uploadHandler.HandleUpload))
	apiRouter.HandleFunc("GET /api/reports/yearly", userHandler.AuthMiddleware(reportHandler.HandleGetYearlyReport))
	apiRouter.HandleFunc("GET /api/reports/dividends", userHandler.AuthMiddleware(reportHandler.HandleGetDividendReport))
	apiRouter.HandleFunc("GET /api/reports/ticker/{ticker}", userHandler.AuthMiddleware(reportHandler.HandleGetTickerReport))
	apiRouter.HandleFunc("GET /api/holdings", userHandler.AuthMiddleware(portfolioHandler.HandleGetHoldings))
	apiRouter.HandleFunc("GET /api/transactions", userHandler.AuthMiddleware(txHandler.HandleGetTransactions))
	apiRouter.HandleFunc("DELETE /api/transactions", userHandler.AuthMiddleware(txHandler.HandleDeleteTransactions))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "CGTFOLIO Backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
