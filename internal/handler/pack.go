package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/ecocomply/ecocomply/internal/storage"
	"github.com/google/uuid"
)

// PackHandler serves the pack readiness, generation and governance endpoints.
type PackHandler struct {
	readiness  service.ReadinessService
	generation service.GenerationService
	governance service.GovernanceService
	storage    storage.Storage
	logger     *slog.Logger
}

// NewPackHandler creates a new PackHandler.
func NewPackHandler(
	readiness service.ReadinessService,
	generation service.GenerationService,
	governance service.GovernanceService,
	objectStore storage.Storage,
	logger *slog.Logger,
) *PackHandler {
	return &PackHandler{
		readiness:  readiness,
		generation: generation,
		governance: governance,
		storage:    objectStore,
		logger:     logger,
	}
}

// RegisterRoutes registers the pack API routes on the mux.
func (h *PackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/packs/readiness", h.EvaluateReadiness)
	mux.HandleFunc("POST /api/packs", h.GeneratePack)
	mux.HandleFunc("GET /api/packs", h.ListPacks)
	mux.HandleFunc("GET /api/packs/{id}", h.GetPack)
	mux.HandleFunc("GET /api/packs/{id}/artifact", h.GetArtifact)
	mux.HandleFunc("POST /api/packs/{id}/detail-requests", h.RequestDetail)
	mux.HandleFunc("POST /api/detail-requests/{id}/approve", h.ApproveDetail)
	mux.HandleFunc("POST /api/packs/{id}/incident-opt-in", h.OptInIncidentStatistics)
}

// generationRequestBody is the wire form of a readiness or generation call.
type generationRequestBody struct {
	CompanyID   uuid.UUID   `json:"company_id"`
	SiteIDs     []uuid.UUID `json:"site_ids"`
	PackType    string      `json:"pack_type"`
	DocumentIDs []uuid.UUID `json:"document_ids,omitempty"`
	PeriodStart *time.Time  `json:"period_start,omitempty"`
	PeriodEnd   *time.Time  `json:"period_end,omitempty"`

	Configuration *configurationBody `json:"configuration,omitempty"`
}

type configurationBody struct {
	DetailLevel               *string  `json:"detail_level,omitempty"`
	DetailSectionsEnabled     []string `json:"detail_sections_enabled,omitempty"`
	IncludeIncidentStatistics *bool    `json:"include_incident_statistics,omitempty"`
}

func (b generationRequestBody) toDomain() domain.PackGenerationRequest {
	req := domain.PackGenerationRequest{
		CompanyID:   b.CompanyID,
		SiteIDs:     b.SiteIDs,
		PackType:    domain.PackType(b.PackType),
		DocumentIDs: b.DocumentIDs,
		PeriodStart: b.PeriodStart,
		PeriodEnd:   b.PeriodEnd,
	}
	if b.Configuration != nil {
		input := &domain.PackConfigurationInput{
			DetailSectionsEnabled:     b.Configuration.DetailSectionsEnabled,
			IncludeIncidentStatistics: b.Configuration.IncludeIncidentStatistics,
		}
		if b.Configuration.DetailLevel != nil {
			level := domain.DetailLevel(*b.Configuration.DetailLevel)
			input.DetailLevel = &level
		}
		req.Configuration = input
	}
	return req
}

// EvaluateReadiness handles POST /api/packs/readiness. A dry run: it reports
// blocking failures, warnings and passes without creating anything.
func (h *PackHandler) EvaluateReadiness(w http.ResponseWriter, r *http.Request) {
	var body generationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.readiness", "invalid request body"))
		return
	}

	result, err := h.readiness.EvaluateReadiness(r.Context(), body.toDomain())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GeneratePack handles POST /api/packs. Readiness is re-evaluated
// server-side; a blocked request returns 422 with the blocking failures and
// creates nothing.
func (h *PackHandler) GeneratePack(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var body generationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.generate", "invalid request body"))
		return
	}

	pack, err := h.generation.GeneratePack(r.Context(), body.toDomain(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, packResponse(pack))
}

// GetPack handles GET /api/packs/{id}.
func (h *PackHandler) GetPack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	pack, err := h.generation.GetPack(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, packResponse(pack))
}

// ListPacks handles GET /api/packs?company_id=...&limit=...&offset=...
func (h *PackHandler) ListPacks(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.URL.Query().Get("company_id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.list_packs", "company_id query parameter is required"))
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	packs, err := h.generation.ListPacks(r.Context(), companyID, int32(limit), int32(offset))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	responses := make([]map[string]interface{}, 0, len(packs))
	for i := range packs {
		responses = append(responses, packResponse(&packs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"packs": responses})
}

// GetArtifact handles GET /api/packs/{id}/artifact and redirects to a
// short-lived signed URL for the rendered bundle.
func (h *PackHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	pack, err := h.generation.GetPack(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !pack.HasArtifact() {
		ErrorResponse(w, r, h.logger, domain.Conflict("handler.artifact", "pack has no rendered artifact"))
		return
	}

	url, err := h.storage.URL(r.Context(), pack.ArtifactKey, time.Hour)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// RequestDetail handles POST /api/packs/{id}/detail-requests.
func (h *PackHandler) RequestDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	packID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var body struct {
		Section       string `json:"section"`
		Justification string `json:"justification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.request_detail", "invalid request body"))
		return
	}

	req, err := h.governance.RequestDetail(r.Context(), packID, body.Section, userID, body.Justification)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ApproveDetail handles POST /api/detail-requests/{id}/approve.
func (h *PackHandler) ApproveDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	requestID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.governance.ApproveDetail(r.Context(), requestID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// OptInIncidentStatistics handles POST /api/packs/{id}/incident-opt-in.
func (h *PackHandler) OptInIncidentStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	packID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var body struct {
		Justification   string `json:"justification"`
		DisclosureLevel string `json:"disclosure_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.incident_opt_in", "invalid request body"))
		return
	}

	err = h.governance.OptInIncidentStatistics(r.Context(), packID, userID, body.Justification, domain.DisclosureLevel(body.DisclosureLevel))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "opted_in"})
}

// packResponse shapes a pack for the wire.
func packResponse(p *domain.Pack) map[string]interface{} {
	resp := map[string]interface{}{
		"id":                      p.ID,
		"company_id":              p.CompanyID,
		"pack_type":               p.PackType,
		"site_ids":                p.SiteIDs,
		"status":                  p.Status,
		"configuration":           p.Configuration,
		"blocking_failures":       p.BlockingFailures,
		"warnings":                p.Warnings,
		"passed_rules":            p.PassedRules,
		"generated_by":            p.GeneratedBy,
		"generated_at":            p.GeneratedAt,
		"needs_manual_generation": p.NeedsManualGeneration,
		"has_artifact":            p.HasArtifact(),
	}
	if p.JobID != nil {
		resp["job_id"] = p.JobID
	}
	if p.ExpiryDate != nil {
		resp["expiry_date"] = p.ExpiryDate
	}
	if p.ErrorMessage != "" {
		resp["error_message"] = p.ErrorMessage
	}
	return resp
}

// requestUserID extracts the authenticated user from the gateway-injected
// header. Authentication itself happens upstream; the engine only needs the
// identity for audit fields.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, domain.Forbidden("handler.identity", "missing X-User-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.identity", "malformed X-User-ID header")
	}
	return id, nil
}

// pathUUID parses a UUID path segment.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.path", "malformed "+name+" path parameter")
	}
	return id, nil
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
