package handler

import (
	"log/slog"
	"net/http"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/google/uuid"
)

// TrendHandler serves the year-over-year compliance trend.
type TrendHandler struct {
	trend  service.TrendService
	logger *slog.Logger
}

// NewTrendHandler creates a new TrendHandler.
func NewTrendHandler(trend service.TrendService, logger *slog.Logger) *TrendHandler {
	return &TrendHandler{trend: trend, logger: logger}
}

// RegisterRoutes registers the trend API routes on the mux.
func (h *TrendHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/companies/{id}/compliance-trend", h.ComplianceTrend)
}

// ComplianceTrend handles GET /api/companies/{id}/compliance-trend.
// Query parameters: site_id (repeatable, required), year (optional,
// defaults to the current year).
func (h *TrendHandler) ComplianceTrend(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var siteIDs []uuid.UUID
	for _, raw := range r.URL.Query()["site_id"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.trend", "malformed site_id query parameter"))
			return
		}
		siteIDs = append(siteIDs, id)
	}

	year := queryInt(r, "year", 0)

	trend, err := h.trend.ComplianceTrend(r.Context(), companyID, siteIDs, year)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}
