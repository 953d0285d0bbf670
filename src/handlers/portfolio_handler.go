package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/cgtfolio/src/logger"
	"github.com/username/cgtfolio/src/models"
	"github.com/username/cgtfolio/src/services"
	"github.com/username/cgtfolio/src/utils"
)

type PortfolioHandler struct {
	reportService services.ReportService
}

func NewPortfolioHandler(service services.ReportService) *PortfolioHandler {
	return &PortfolioHandler{
		reportService: service,
	}
}

// HandleGetHoldings returns the open positions after the full pass,
// including cost rebasing from deemed disposals and merger conversions.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	holdings, err := h.reportService.GetHoldings(userID)
	if err != nil {
		logger.L.Error("Error retrieving holdings", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.HoldingSnapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(holdings); err != nil {
		logger.L.Error("Error encoding holdings response", "userID", userID, "error", err)
	}
}
