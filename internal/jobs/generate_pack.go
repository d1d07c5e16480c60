// Package jobs contains background job handlers executed by the worker.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecocomply/ecocomply/internal/artifact"
	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/repository"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/ecocomply/ecocomply/internal/storage"
	"github.com/ecocomply/ecocomply/internal/worker"
	"github.com/google/uuid"
)

// GeneratePackHandler processes jobs that assemble and upload pack
// artifacts. It aggregates the pack's persisted readiness snapshot with the
// audience-specific sections, renders the bundle and uploads it to storage.
type GeneratePackHandler struct {
	store    *repository.Store
	storage  storage.Storage
	trend    service.TrendService
	renderer artifact.Renderer
	logger   *slog.Logger
}

// NewGeneratePackHandler creates a new handler for pack generation jobs.
func NewGeneratePackHandler(
	store *repository.Store,
	objectStore storage.Storage,
	trend service.TrendService,
	renderer artifact.Renderer,
	logger *slog.Logger,
) *GeneratePackHandler {
	if renderer == nil {
		renderer = artifact.NewJSONRenderer()
	}
	return &GeneratePackHandler{
		store:    store,
		storage:  objectStore,
		trend:    trend,
		renderer: renderer,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *GeneratePackHandler) Type() string {
	return worker.JobTypeGeneratePack
}

// Handle executes the pack generation job.
func (h *GeneratePackHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.GeneratePackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	pack, err := h.store.GetPackByID(ctx, p.PackID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("pack not found: %s", p.PackID))
		}
		return fmt.Errorf("fetch pack: %w", err)
	}

	// A ready pack with an artifact means a previous attempt completed and
	// the completion was only partially recorded; the retry is a no-op.
	if pack.Status == domain.PackStatusReady && pack.HasArtifact() {
		h.logger.Warn("Pack already has an artifact, skipping",
			"pack_id", pack.ID,
			"artifact_key", pack.ArtifactKey,
		)
		return nil
	}
	if pack.Status != domain.PackStatusGenerating {
		return worker.NewPermanentError(fmt.Errorf(
			"pack must be in 'generating' status to render, got: %s", pack.Status,
		))
	}

	h.logger.Info("Generating pack artifact",
		"pack_id", pack.ID,
		"pack_type", pack.PackType,
		"format", h.renderer.Format(),
	)

	bundle, err := h.aggregateArtifact(ctx, pack)
	if err != nil {
		return h.failPack(ctx, pack.ID, fmt.Errorf("aggregate artifact data: %w", err))
	}

	var buf bytes.Buffer
	bytesWritten, err := h.renderer.Render(ctx, bundle, &buf)
	if err != nil {
		return h.failPack(ctx, pack.ID, fmt.Errorf("render %s artifact: %w", h.renderer.Format(), err))
	}

	key := storage.PackKey(pack.CompanyID, pack.ID, string(h.renderer.Format()))
	err = h.storage.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: h.renderer.Format().ContentType(),
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("upload artifact to storage: %w", err)
	}

	if err := h.store.CompletePack(ctx, pack.ID, key); err != nil {
		return fmt.Errorf("complete pack: %w", err)
	}

	h.logger.Info("Pack generation completed",
		"pack_id", pack.ID,
		"storage_key", key,
		"size_bytes", bytesWritten,
	)
	return nil
}

// failPack marks the pack failed and returns a permanent error so the job is
// not retried. These failures are deterministic: retrying renders the same
// data again.
func (h *GeneratePackHandler) failPack(ctx context.Context, packID uuid.UUID, cause error) error {
	if err := h.store.FailPack(ctx, packID, cause.Error()); err != nil {
		h.logger.Error("Failed to mark pack as failed",
			"pack_id", packID,
			"error", err,
			"cause", cause,
		)
	}
	return worker.NewPermanentError(cause)
}

// aggregateArtifact assembles the full bundle for rendering.
func (h *GeneratePackHandler) aggregateArtifact(ctx context.Context, pack *domain.Pack) (*domain.PackArtifact, error) {
	bundle := &domain.PackArtifact{
		Pack:       *pack,
		RenderedAt: time.Now(),
	}

	// The metadata snapshot lives alongside the pack row but is cheap to
	// recompute; the coverage reads are informational either way.
	total, assessed, err := h.store.ObligationCoverage(ctx, pack.SiteIDs)
	if err == nil {
		bundle.Metadata.ObligationsTotal = total
		bundle.Metadata.ObligationsAssessed = assessed
	}
	if count, err := h.store.CountEvidenceItems(ctx, pack.SiteIDs); err == nil {
		bundle.Metadata.EvidenceItemCount = count
	}
	if ok, err := h.store.HasRiskAssessmentForYear(ctx, pack.CompanyID, pack.GeneratedAt.Year()); err == nil {
		bundle.Metadata.HasCurrentRiskAssessment = ok
	}

	switch pack.PackType {
	case domain.PackTypeRegulator, domain.PackTypeAudit:
		conditions, err := h.store.ListPermitConditionsBySites(ctx, pack.SiteIDs)
		if err != nil {
			return nil, fmt.Errorf("list permit conditions: %w", err)
		}
		bundle.PermitConditions = conditions

	case domain.PackTypeBoard:
		trend, err := h.trend.ComplianceTrend(ctx, pack.CompanyID, pack.SiteIDs, pack.GeneratedAt.Year())
		if err != nil {
			return nil, fmt.Errorf("compute compliance trend: %w", err)
		}
		bundle.Trend = trend

	case domain.PackTypeTender:
		cfg := pack.Configuration.Tender
		if cfg == nil || !cfg.IncludeIncidentStatistics {
			break
		}
		// The disclosed figures come from the immutable opt-in snapshot,
		// never recomputed at render time.
		optIn, err := h.store.GetIncidentOptIn(ctx, pack.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch incident opt-in: %w", err)
		}
		var stats domain.IncidentStatistics
		if err := json.Unmarshal(optIn.Snapshot, &stats); err != nil {
			return nil, fmt.Errorf("decode incident snapshot: %w", err)
		}
		bundle.IncidentStatistics = &stats
	}

	return bundle, nil
}
