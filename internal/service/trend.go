package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// TrendService computes the year-over-year compliance trend shown on the
// dashboard and embedded in board packs.
type TrendService interface {
	// ComplianceTrend aggregates the given year's site assessments against
	// the prior year's. Read-only.
	ComplianceTrend(ctx context.Context, companyID uuid.UUID, siteIDs []uuid.UUID, year int) (*domain.ComplianceTrend, error)
}

// TrendStore provides the assessment and workload reads the trend needs.
type TrendStore interface {
	ListSiteAssessments(ctx context.Context, siteIDs []uuid.UUID, year int) ([]domain.SiteAssessment, error)
	CorrectiveActionCounts(ctx context.Context, siteIDs []uuid.UUID, asOf time.Time) (domain.CorrectiveActionCounts, error)
	NonConformanceBreakdown(ctx context.Context, siteIDs []uuid.UUID, year int) (map[string]int, error)
}

// =============================================================================
// Implementation
// =============================================================================

type trendService struct {
	store  TrendStore
	logger *slog.Logger
	now    func() time.Time
}

// NewTrendService creates a new TrendService.
func NewTrendService(store TrendStore, logger *slog.Logger) TrendService {
	return &trendService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ComplianceTrend sums violation-point scores across the company's sites for
// the requested year and the year before. Lower is better: a drop in the
// total is IMPROVING, a rise is DECLINING. A company with no prior-year
// assessments at all is NEW, regardless of the current year's total.
func (s *trendService) ComplianceTrend(ctx context.Context, companyID uuid.UUID, siteIDs []uuid.UUID, year int) (*domain.ComplianceTrend, error) {
	const op = "trend.compliance"

	if len(siteIDs) == 0 {
		return nil, domain.Invalid(op, "at least one site is required")
	}
	if year == 0 {
		year = s.now().Year()
	}

	current, err := s.store.ListSiteAssessments(ctx, siteIDs, year)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load current year assessments")
	}
	previous, err := s.store.ListSiteAssessments(ctx, siteIDs, year-1)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load prior year assessments")
	}

	trend := &domain.ComplianceTrend{
		CompanyID:       companyID,
		Year:            year,
		SiteAssessments: current,
	}
	for _, a := range current {
		trend.CurrentTotal += a.Score
	}
	for _, a := range previous {
		trend.PreviousTotal += a.Score
	}

	switch {
	case len(previous) == 0:
		trend.Direction = domain.TrendNew
	case trend.CurrentTotal < trend.PreviousTotal:
		trend.Direction = domain.TrendImproving
	case trend.CurrentTotal > trend.PreviousTotal:
		trend.Direction = domain.TrendDeclining
	default:
		trend.Direction = domain.TrendStable
	}

	// The workload counts are contextual: a partial read degrades the
	// response rather than failing it.
	counts, err := s.store.CorrectiveActionCounts(ctx, siteIDs, s.now())
	if err != nil {
		s.logger.Warn("Failed to load corrective action counts for trend",
			"company_id", companyID,
			"error", err,
		)
	} else {
		trend.CorrectiveActions = counts
	}

	breakdown, err := s.store.NonConformanceBreakdown(ctx, siteIDs, year)
	if err != nil {
		s.logger.Warn("Failed to load non-conformance breakdown for trend",
			"company_id", companyID,
			"error", err,
		)
	} else {
		trend.NonConformances = breakdown
	}

	return trend, nil
}
