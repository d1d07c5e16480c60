package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/ecocomply/ecocomply/internal/storage"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeReadiness struct {
	result *domain.PackGenerationResult
	err    error
}

func (f *fakeReadiness) EvaluateReadiness(_ context.Context, _ domain.PackGenerationRequest) (*domain.PackGenerationResult, error) {
	return f.result, f.err
}

type fakeGeneration struct {
	pack    *domain.Pack
	packs   []domain.Pack
	err     error
	lastReq domain.PackGenerationRequest
	userID  uuid.UUID
}

func (f *fakeGeneration) GeneratePack(_ context.Context, req domain.PackGenerationRequest, userID uuid.UUID) (*domain.Pack, error) {
	f.lastReq = req
	f.userID = userID
	return f.pack, f.err
}

func (f *fakeGeneration) GetPack(_ context.Context, id uuid.UUID) (*domain.Pack, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.pack == nil || f.pack.ID != id {
		return nil, domain.NotFound("packs.get", "pack", id.String())
	}
	return f.pack, nil
}

func (f *fakeGeneration) ListPacks(_ context.Context, _ uuid.UUID, _, _ int32) ([]domain.Pack, error) {
	return f.packs, f.err
}

type fakeGovernance struct {
	request *domain.DetailRequest
	err     error
}

func (f *fakeGovernance) RequestDetail(_ context.Context, _ uuid.UUID, _ string, _ uuid.UUID, _ string) (*domain.DetailRequest, error) {
	return f.request, f.err
}

func (f *fakeGovernance) ApproveDetail(_ context.Context, _, _ uuid.UUID) error {
	return f.err
}

func (f *fakeGovernance) OptInIncidentStatistics(_ context.Context, _, _ uuid.UUID, _ string, _ domain.DisclosureLevel) error {
	return f.err
}

type fakeStorage struct {
	url string
	err error
}

func (f *fakeStorage) Put(_ context.Context, _ string, _ io.Reader, _ storage.PutOptions) error {
	return f.err
}

func (f *fakeStorage) Get(_ context.Context, _ string) (io.ReadCloser, storage.ObjectInfo, error) {
	return nil, storage.ObjectInfo{}, f.err
}

func (f *fakeStorage) Delete(_ context.Context, _ string) error { return f.err }

func (f *fakeStorage) URL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return f.url, f.err
}

func (f *fakeStorage) Exists(_ context.Context, _ string) (bool, error) { return f.url != "", f.err }

func newTestMux(readiness service.ReadinessService, generation service.GenerationService, governance service.GovernanceService, store storage.Storage) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mux := http.NewServeMux()
	NewPackHandler(readiness, generation, governance, store, logger).RegisterRoutes(mux)
	return mux
}

func readyPack() *domain.Pack {
	return &domain.Pack{
		ID:          uuid.New(),
		CompanyID:   uuid.New(),
		PackType:    domain.PackTypeRegulator,
		SiteIDs:     []uuid.UUID{uuid.New()},
		Status:      domain.PackStatusGenerating,
		GeneratedBy: uuid.New(),
		GeneratedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func generationBody(companyID, siteID uuid.UUID) string {
	return fmt.Sprintf(`{"company_id":%q,"site_ids":[%q],"pack_type":"regulator"}`, companyID, siteID)
}

// =============================================================================
// Readiness and Generation
// =============================================================================

func TestPackHandler_EvaluateReadiness(t *testing.T) {
	result := &domain.PackGenerationResult{
		PackID:      uuid.New(),
		CanGenerate: false,
		BlockingFailures: []domain.RuleEvaluation{
			{RuleID: "OBLIGATION_COVERAGE", Result: domain.RuleResultFail, Blocking: true},
		},
	}
	mux := newTestMux(&fakeReadiness{result: result}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

	body := generationBody(uuid.New(), uuid.New())
	req := httptest.NewRequest("POST", "/api/packs/readiness", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// A dry run reports the blockers with 200; only generation turns them
	// into an error.
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded domain.PackGenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.False(t, decoded.CanGenerate)
	require.Len(t, decoded.BlockingFailures, 1)
	assert.Equal(t, "OBLIGATION_COVERAGE", decoded.BlockingFailures[0].RuleID)
}

func TestPackHandler_GeneratePack(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		pack := readyPack()
		jobID := uuid.New()
		pack.JobID = &jobID
		generation := &fakeGeneration{pack: pack}
		mux := newTestMux(&fakeReadiness{}, generation, &fakeGovernance{}, &fakeStorage{})

		userID := uuid.New()
		req := httptest.NewRequest("POST", "/api/packs", strings.NewReader(generationBody(pack.CompanyID, pack.SiteIDs[0])))
		req.Header.Set("X-User-ID", userID.String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, userID, generation.userID)
		assert.Equal(t, pack.CompanyID, generation.lastReq.CompanyID)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		assert.Equal(t, "generating", decoded["status"])
		assert.Equal(t, jobID.String(), decoded["job_id"])
		assert.Equal(t, false, decoded["has_artifact"])
	})

	t.Run("blocked returns 422 with failures", func(t *testing.T) {
		generation := &fakeGeneration{err: &domain.BlockedError{
			Op: "generation.generate",
			Failures: []domain.RuleEvaluation{
				{RuleID: "PERMIT_ACTIVE_STATUS", Result: domain.RuleResultFail, Blocking: true},
			},
		}}
		mux := newTestMux(&fakeReadiness{}, generation, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/packs", strings.NewReader(generationBody(uuid.New(), uuid.New())))
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "PERMIT_ACTIVE_STATUS")
	})

	t.Run("missing identity is forbidden", func(t *testing.T) {
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/packs", strings.NewReader(generationBody(uuid.New(), uuid.New())))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed identity is invalid", func(t *testing.T) {
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/packs", strings.NewReader(generationBody(uuid.New(), uuid.New())))
		req.Header.Set("X-User-ID", "not-a-uuid")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is invalid", func(t *testing.T) {
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/packs", strings.NewReader("{"))
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPackHandler_GetPack(t *testing.T) {
	pack := readyPack()
	pack.Status = domain.PackStatusReady
	pack.NeedsManualGeneration = true
	mux := newTestMux(&fakeReadiness{}, &fakeGeneration{pack: pack}, &fakeGovernance{}, &fakeStorage{})

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/packs/"+pack.ID.String(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		assert.Equal(t, "ready", decoded["status"])
		// A degraded pack is visibly flagged for a manual retry.
		assert.Equal(t, true, decoded["needs_manual_generation"])
		assert.Equal(t, false, decoded["has_artifact"])
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/packs/"+uuid.New().String(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/packs/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPackHandler_ListPacks(t *testing.T) {
	generation := &fakeGeneration{packs: []domain.Pack{*readyPack(), *readyPack()}}
	mux := newTestMux(&fakeReadiness{}, generation, &fakeGovernance{}, &fakeStorage{})

	t.Run("lists for a company", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/packs?company_id="+uuid.New().String(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var decoded struct {
			Packs []map[string]interface{} `json:"packs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		assert.Len(t, decoded.Packs, 2)
	})

	t.Run("company_id is required", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/packs", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPackHandler_GetArtifact(t *testing.T) {
	t.Run("redirects to the signed url", func(t *testing.T) {
		pack := readyPack()
		pack.Status = domain.PackStatusReady
		pack.ArtifactKey = storage.PackKey(pack.CompanyID, pack.ID, "json")
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{pack: pack}, &fakeGovernance{},
			&fakeStorage{url: "https://files.example.com/signed"})

		req := httptest.NewRequest("GET", "/api/packs/"+pack.ID.String()+"/artifact", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Equal(t, "https://files.example.com/signed", rec.Header().Get("Location"))
	})

	t.Run("no artifact conflicts", func(t *testing.T) {
		pack := readyPack()
		pack.Status = domain.PackStatusReady
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{pack: pack}, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("GET", "/api/packs/"+pack.ID.String()+"/artifact", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

// =============================================================================
// Governance
// =============================================================================

func TestPackHandler_RequestDetail(t *testing.T) {
	packID := uuid.New()
	governance := &fakeGovernance{request: &domain.DetailRequest{
		ID:     uuid.New(),
		PackID: packID,
		Status: domain.DetailRequestPending,
	}}
	mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, governance, &fakeStorage{})

	body := `{"section":"incidents","justification":"board asked"}`
	req := httptest.NewRequest("POST", "/api/packs/"+packID.String()+"/detail-requests", strings.NewReader(body))
	req.Header.Set("X-User-ID", uuid.New().String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending")
}

func TestPackHandler_ApproveDetail(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/detail-requests/"+uuid.New().String()+"/approve", nil)
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "approved")
	})

	t.Run("double approval conflicts", func(t *testing.T) {
		governance := &fakeGovernance{err: domain.Conflict("governance.approve_detail", "detail request is not pending")}
		mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, governance, &fakeStorage{})

		req := httptest.NewRequest("POST", "/api/detail-requests/"+uuid.New().String()+"/approve", nil)
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestPackHandler_OptInIncidentStatistics(t *testing.T) {
	mux := newTestMux(&fakeReadiness{}, &fakeGeneration{}, &fakeGovernance{}, &fakeStorage{})

	body := `{"justification":"tender requires disclosure","disclosure_level":"summary"}`
	req := httptest.NewRequest("POST", "/api/packs/"+uuid.New().String()+"/incident-opt-in", strings.NewReader(body))
	req.Header.Set("X-User-ID", uuid.New().String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opted_in")
}
