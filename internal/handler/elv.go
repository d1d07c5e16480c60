package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/google/uuid"
)

// ElvHandler serves emission limit compliance checks.
type ElvHandler struct {
	elv    service.ElvService
	logger *slog.Logger
}

// NewElvHandler creates a new ElvHandler.
func NewElvHandler(elv service.ElvService, logger *slog.Logger) *ElvHandler {
	return &ElvHandler{elv: elv, logger: logger}
}

// RegisterRoutes registers the ELV API routes on the mux.
func (h *ElvHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/elv/checks", h.CheckCompliance)
}

// CheckCompliance handles POST /api/elv/checks. The measurement is compared
// against the permit limit exactly as transcribed; a unit or
// reference-condition mismatch is a 422, never a silent conversion.
func (h *ElvHandler) CheckCompliance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConditionID         uuid.UUID `json:"condition_id"`
		MeasuredValue       float64   `json:"measured_value"`
		MeasuredUnit        string    `json:"measured_unit"`
		ReferenceConditions string    `json:"reference_conditions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.elv_check", "invalid request body"))
		return
	}
	if body.ConditionID == uuid.Nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.elv_check", "condition_id is required"))
		return
	}

	result, err := h.elv.CheckCompliance(r.Context(), service.ElvCheckInput{
		ConditionID:         body.ConditionID,
		MeasuredValue:       body.MeasuredValue,
		MeasuredUnit:        body.MeasuredUnit,
		ReferenceConditions: body.ReferenceConditions,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
