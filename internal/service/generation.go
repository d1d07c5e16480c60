// Package service contains the business logic layer.
//
// This file implements the generation orchestrator: readiness re-check,
// pack persistence, async dispatch and the degrade path for dispatch
// outages.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/metrics"
	"github.com/ecocomply/ecocomply/internal/repository"
	"github.com/ecocomply/ecocomply/internal/worker"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// GenerationService orchestrates pack creation and dispatch.
type GenerationService interface {
	// GeneratePack re-evaluates readiness, persists the pack and dispatches
	// generation. Returns a BlockedError (and creates nothing) when
	// readiness fails.
	GeneratePack(ctx context.Context, req domain.PackGenerationRequest, userID uuid.UUID) (*domain.Pack, error)

	// GetPack fetches a pack by id.
	GetPack(ctx context.Context, id uuid.UUID) (*domain.Pack, error)

	// ListPacks returns a company's packs, newest first. An unknown
	// company is a not-found error.
	ListPacks(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.Pack, error)
}

// GenerationStore is the pack persistence the orchestrator needs.
type GenerationStore interface {
	TouchCompany(ctx context.Context, companyID uuid.UUID) error
	CreatePack(ctx context.Context, params repository.CreatePackParams) (*domain.Pack, error)
	TransitionPackStatus(ctx context.Context, id uuid.UUID, from, to domain.PackStatus) error
	MarkPackDispatched(ctx context.Context, id, jobID uuid.UUID) error
	DegradePack(ctx context.Context, id uuid.UUID) error
	GetPackByID(ctx context.Context, id uuid.UUID) (*domain.Pack, error)
	ListPacksByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.Pack, error)
}

// =============================================================================
// Implementation
// =============================================================================

type generationService struct {
	store      GenerationStore
	readiness  ReadinessService
	dispatcher worker.Dispatcher
	expiry     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewGenerationService creates a new GenerationService. Generated packs
// expire (become stale for audit purposes) after the given duration;
// expiry enforcement is an external concern.
func NewGenerationService(
	store GenerationStore,
	readiness ReadinessService,
	dispatcher worker.Dispatcher,
	expiry time.Duration,
	logger *slog.Logger,
) GenerationService {
	return &generationService{
		store:      store,
		readiness:  readiness,
		dispatcher: dispatcher,
		expiry:     expiry,
		logger:     logger,
		now:        time.Now,
	}
}

// GeneratePack runs the full orchestration.
//
// Readiness is always re-evaluated here: a client-provided result may be
// stale, so it is never trusted. Each call produces an independent pack
// with a fresh id; dispatch is keyed by that id, so duplicate submissions
// can never race on one pack's artifact.
func (s *generationService) GeneratePack(ctx context.Context, req domain.PackGenerationRequest, userID uuid.UUID) (*domain.Pack, error) {
	const op = "generation.generate"

	if req.GenerationDate.IsZero() {
		req.GenerationDate = s.now()
	}

	result, err := s.readiness.EvaluateReadiness(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.CanGenerate {
		// No state is created for a blocked request; the caller gets the
		// full list of blocking rules to act on.
		return nil, &domain.BlockedError{Op: op, Failures: result.BlockingFailures}
	}

	cfg := ResolveConfiguration(req.PackType, req.Configuration)
	expiryDate := req.GenerationDate.Add(s.expiry)

	pack, err := s.store.CreatePack(ctx, repository.CreatePackParams{
		ID:               result.PackID,
		CompanyID:        req.CompanyID,
		PackType:         req.PackType,
		SiteIDs:          req.SiteIDs,
		Status:           domain.PackStatusDraft,
		Configuration:    cfg,
		BlockingFailures: result.BlockingFailures,
		Warnings:         result.Warnings,
		PassedRules:      result.PassedRules,
		Metadata:         result.Metadata,
		GeneratedBy:      userID,
		GeneratedAt:      req.GenerationDate,
		ExpiryDate:       &expiryDate,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to persist pack")
	}

	if err := s.store.TransitionPackStatus(ctx, pack.ID, domain.PackStatusDraft, domain.PackStatusGenerating); err != nil {
		return nil, domain.Internal(err, op, "failed to promote pack to generating")
	}

	handle, err := s.dispatcher.Dispatch(ctx, worker.GeneratePackPayload{
		PackID:    pack.ID,
		CompanyID: pack.CompanyID,
		UserID:    userID,
	})
	if err != nil {
		// Dispatch infrastructure is unavailable. The readiness work is
		// already persisted; degrade the pack to ready without an artifact
		// and surface success with a manual-retry flag instead of failing
		// the request.
		s.logger.Error("Pack generation dispatch failed, degrading pack",
			"pack_id", pack.ID,
			"error", err,
		)
		metrics.PackDispatchFailed(req.PackType.String())

		if derr := s.store.DegradePack(ctx, pack.ID); derr != nil {
			return nil, domain.Internal(derr, op, "failed to degrade pack after dispatch failure")
		}
		metrics.PackGenerated(req.PackType.String(), "degraded")
		return s.store.GetPackByID(ctx, pack.ID)
	}

	if err := s.store.MarkPackDispatched(ctx, pack.ID, handle.JobID); err != nil {
		// The job is queued and will complete regardless; losing the link
		// only costs traceability.
		s.logger.Warn("Failed to link dispatched job to pack",
			"pack_id", pack.ID,
			"job_id", handle.JobID,
			"error", err,
		)
	}

	metrics.PackGenerated(req.PackType.String(), "dispatched")
	s.logger.Info("Pack generation dispatched",
		"pack_id", pack.ID,
		"job_id", handle.JobID,
		"pack_type", req.PackType,
		"generated_by", userID,
	)
	return s.store.GetPackByID(ctx, pack.ID)
}

// GetPack fetches a pack by id.
func (s *generationService) GetPack(ctx context.Context, id uuid.UUID) (*domain.Pack, error) {
	return s.store.GetPackByID(ctx, id)
}

// ListPacks returns a company's packs, newest first. An unknown company is
// not-found, never an empty list.
func (s *generationService) ListPacks(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.Pack, error) {
	if err := s.store.TouchCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPacksByCompany(ctx, companyID, limit, offset)
}
