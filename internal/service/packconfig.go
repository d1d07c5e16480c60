// Package service contains the business logic layer.
//
// This file implements pack-type configuration resolution and the
// governance workflows that loosen the conservative defaults: board-pack
// detail-access requests and tender-pack incident opt-ins.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Configuration Resolution
// =============================================================================

// ResolveConfiguration merges caller-supplied overrides onto the pack-type
// defaults. Caller values win when present. The result is tagged with
// exactly the variant the pack type uses, so a board pack can never carry
// tender settings.
//
// Defaults are deliberately conservative: board packs start aggregated with
// no detail sections, tender packs exclude incident statistics. Both are
// loosened only through the recorded governance workflows below.
func ResolveConfiguration(packType domain.PackType, input *domain.PackConfigurationInput) domain.PackConfiguration {
	cfg := domain.PackConfiguration{PackType: packType}

	switch packType {
	case domain.PackTypeBoard:
		board := &domain.BoardConfig{
			DetailLevel:           domain.DetailLevelAggregated,
			DetailSectionsEnabled: []string{},
		}
		if input != nil {
			if input.DetailLevel != nil && input.DetailLevel.IsValid() {
				board.DetailLevel = *input.DetailLevel
			}
			if len(input.DetailSectionsEnabled) > 0 {
				board.DetailSectionsEnabled = append([]string{}, input.DetailSectionsEnabled...)
			}
		}
		cfg.Board = board

	case domain.PackTypeTender:
		tender := &domain.TenderConfig{IncludeIncidentStatistics: false}
		if input != nil && input.IncludeIncidentStatistics != nil {
			tender.IncludeIncidentStatistics = *input.IncludeIncidentStatistics
		}
		cfg.Tender = tender
	}

	return cfg
}

// =============================================================================
// Governance Service
// =============================================================================

// GovernanceService runs the approval-gated configuration workflows.
type GovernanceService interface {
	// RequestDetail files a pending request to enable a fine-grained section
	// on a board pack. There is no automatic approval.
	RequestDetail(ctx context.Context, packID uuid.UUID, section string, requestedBy uuid.UUID, justification string) (*domain.DetailRequest, error)

	// ApproveDetail approves a pending detail request and enables the
	// section on the pack.
	ApproveDetail(ctx context.Context, requestID, approvedBy uuid.UUID) error

	// OptInIncidentStatistics records a tender pack's incident disclosure
	// opt-in, freezing the incident statistics snapshot at opt-in time.
	OptInIncidentStatistics(ctx context.Context, packID, approvedBy uuid.UUID, justification string, level domain.DisclosureLevel) error
}

// GovernanceStore is the data access the governance workflows need.
type GovernanceStore interface {
	GetPackByID(ctx context.Context, id uuid.UUID) (*domain.Pack, error)
	CreateDetailRequest(ctx context.Context, req domain.DetailRequest) error
	GetDetailRequest(ctx context.Context, id uuid.UUID) (*domain.DetailRequest, error)
	ApproveDetailRequest(ctx context.Context, id, approvedBy uuid.UUID, approvedAt time.Time) error
	EnableDetailSection(ctx context.Context, packID uuid.UUID, section string) error
	CreateIncidentOptIn(ctx context.Context, optIn domain.IncidentOptIn) error
	IncidentStatistics(ctx context.Context, siteIDs []uuid.UUID, asOf time.Time) (domain.IncidentStatistics, error)
	MarkIncidentStatisticsIncluded(ctx context.Context, packID uuid.UUID) error
}

type governanceService struct {
	store  GovernanceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewGovernanceService creates a new GovernanceService.
func NewGovernanceService(store GovernanceStore, logger *slog.Logger) GovernanceService {
	return &governanceService{store: store, logger: logger, now: time.Now}
}

// RequestDetail files a pending detail-access request for a board pack.
func (s *governanceService) RequestDetail(ctx context.Context, packID uuid.UUID, section string, requestedBy uuid.UUID, justification string) (*domain.DetailRequest, error) {
	const op = "governance.request_detail"

	section = strings.TrimSpace(section)
	if section == "" {
		return nil, domain.Invalid(op, "section is required")
	}
	if strings.TrimSpace(justification) == "" {
		return nil, domain.Invalid(op, "justification is required")
	}

	pack, err := s.store.GetPackByID(ctx, packID)
	if err != nil {
		return nil, err
	}
	if pack.PackType != domain.PackTypeBoard {
		return nil, domain.Invalid(op, "detail requests apply to board packs only")
	}

	req := domain.DetailRequest{
		ID:            uuid.New(),
		PackID:        packID,
		Section:       section,
		RequestedBy:   requestedBy,
		Justification: justification,
		Status:        domain.DetailRequestPending,
		RequestedAt:   s.now(),
	}
	if err := s.store.CreateDetailRequest(ctx, req); err != nil {
		return nil, domain.Internal(err, op, "failed to record detail request")
	}

	s.logger.Info("Board pack detail requested",
		"pack_id", packID,
		"section", section,
		"requested_by", requestedBy,
	)
	return &req, nil
}

// ApproveDetail marks a pending request approved and enables the section on
// the pack's configuration.
func (s *governanceService) ApproveDetail(ctx context.Context, requestID, approvedBy uuid.UUID) error {
	const op = "governance.approve_detail"

	req, err := s.store.GetDetailRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != domain.DetailRequestPending {
		return domain.Conflict(op, "detail request is not pending")
	}

	if err := s.store.ApproveDetailRequest(ctx, requestID, approvedBy, s.now()); err != nil {
		return err
	}
	if err := s.store.EnableDetailSection(ctx, req.PackID, req.Section); err != nil {
		return domain.Internal(err, op, "failed to enable detail section on pack")
	}

	s.logger.Info("Board pack detail approved",
		"request_id", requestID,
		"pack_id", req.PackID,
		"section", req.Section,
		"approved_by", approvedBy,
	)
	return nil
}

// OptInIncidentStatistics records the opt-in with a frozen statistics
// snapshot. The snapshot is immutable once recorded, even if incidents are
// later edited, so the tender disclosure stays auditable.
func (s *governanceService) OptInIncidentStatistics(ctx context.Context, packID, approvedBy uuid.UUID, justification string, level domain.DisclosureLevel) error {
	const op = "governance.opt_in_incidents"

	if strings.TrimSpace(justification) == "" {
		return domain.Invalid(op, "justification is required")
	}
	if !level.IsValid() {
		return domain.Invalid(op, "unknown disclosure level: "+string(level))
	}

	pack, err := s.store.GetPackByID(ctx, packID)
	if err != nil {
		return err
	}
	if pack.PackType != domain.PackTypeTender {
		return domain.Invalid(op, "incident opt-in applies to tender packs only")
	}

	approvedAt := s.now()
	stats, err := s.store.IncidentStatistics(ctx, pack.SiteIDs, approvedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to snapshot incident statistics")
	}
	snapshot, err := json.Marshal(stats)
	if err != nil {
		return domain.Internal(err, op, "failed to encode incident snapshot")
	}

	optIn := domain.IncidentOptIn{
		PackID:          packID,
		ApprovedBy:      approvedBy,
		ApprovedAt:      approvedAt,
		Justification:   justification,
		DisclosureLevel: level,
		Snapshot:        snapshot,
	}
	if err := s.store.CreateIncidentOptIn(ctx, optIn); err != nil {
		return err
	}
	if err := s.store.MarkIncidentStatisticsIncluded(ctx, packID); err != nil {
		return domain.Internal(err, op, "failed to flag incident statistics on pack")
	}

	s.logger.Info("Tender pack incident statistics opted in",
		"pack_id", packID,
		"approved_by", approvedBy,
		"disclosure_level", level,
		"incidents_snapshotted", stats.TotalIncidents,
	)
	return nil
}
