package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/services"
	"github.com/username/cgtfolio/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: service,
	}
}

// HandleGetYearlyReport returns the per-year tax states. Supports ETag so
// the frontend can poll cheaply.
func (h *ReportHandler) HandleGetYearlyReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	states, err := h.reportService.GetYearlyTaxStates(userID)
	if err != nil {
		logger.L.Error("Error retrieving yearly tax states", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving yearly report for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if states == nil {
		states = []models.YearlyTaxState{}
	}

	writeJSONWithETag(w, r, userID, states)
}

// HandleGetDividendReport returns the dividend income summary per year.
func (h *ReportHandler) HandleGetDividendReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	rows, err := h.reportService.GetDividendReport(userID)
	if err != nil {
		logger.L.Error("Error retrieving dividend report", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving dividend report for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []services.DividendYearRow{}
	}

	writeJSONWithETag(w, r, userID, rows)
}

// HandleGetTickerReport returns the drill-down for one ticker.
func (h *ReportHandler) HandleGetTickerReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	ticker := r.PathValue("ticker")
	if ticker == "" {
		utils.SendJSONError(w, "ticker path parameter is required", http.StatusBadRequest)
		return
	}

	report, err := h.reportService.GetTickerReport(userID, ticker)
	if err != nil {
		logger.L.Error("Error retrieving ticker report", "userID", userID, "ticker", ticker, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving report for ticker %s: %v", ticker, err), http.StatusInternalServerError)
		return
	}
	if report.Realized == nil {
		report.Realized = []models.RealizedEvent{}
	}
	if report.Dividends == nil {
		report.Dividends = []models.DividendEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding ticker report", "userID", userID, "ticker", ticker, "error", err)
	}
}

// writeJSONWithETag sends the payload with an ETag and honors If-None-Match.
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, userID int64, payload interface{}) {
	currentETag, etagErr := utils.GenerateETag(payload)

	w.Header().Set("Cache-Control", "no-cache, private")
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag check", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error generating JSON response", "userID", userID, "error", err)
	}
}
