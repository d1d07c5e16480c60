// Package service contains the business logic layer.
//
// This file implements the readiness aggregator: the evaluation of every
// applicable catalog rule for a pack generation request.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/metrics"
	"github.com/ecocomply/ecocomply/internal/rules"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ReadinessService evaluates whether a pack may be generated.
type ReadinessService interface {
	// EvaluateReadiness runs every active rule applicable to the request's
	// pack type and returns the aggregate decision.
	EvaluateReadiness(ctx context.Context, req domain.PackGenerationRequest) (*domain.PackGenerationResult, error)
}

// RuleCatalogStore provides the active rule catalog.
type RuleCatalogStore interface {
	ListActiveRulesByPackType(ctx context.Context, packType domain.PackType) ([]domain.Rule, error)
}

// MetadataStore provides the informational coverage reads attached to every
// result.
type MetadataStore interface {
	ObligationCoverage(ctx context.Context, siteIDs []uuid.UUID) (total, assessed int, err error)
	CountEvidenceItems(ctx context.Context, siteIDs []uuid.UUID) (int, error)
	HasRiskAssessmentForYear(ctx context.Context, companyID uuid.UUID, year int) (bool, error)
}

// =============================================================================
// Implementation
// =============================================================================

type readinessService struct {
	adoption AdoptionResolver
	catalog  RuleCatalogStore
	metadata MetadataStore
	registry *rules.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewReadinessService creates a new ReadinessService.
func NewReadinessService(
	adoption AdoptionResolver,
	catalog RuleCatalogStore,
	metadata MetadataStore,
	registry *rules.Registry,
	logger *slog.Logger,
) ReadinessService {
	return &readinessService{
		adoption: adoption,
		catalog:  catalog,
		metadata: metadata,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// EvaluateReadiness runs all applicable rule handlers and partitions their
// evaluations.
//
// Evaluation is synchronous and side-effect-free beyond reads: nothing here
// writes shared state, so concurrent evaluations need no locking and the
// call is idempotent for a fixed data-store state.
func (s *readinessService) EvaluateReadiness(ctx context.Context, req domain.PackGenerationRequest) (*domain.PackGenerationResult, error) {
	const op = "readiness.evaluate"

	if err := req.Validate(); err != nil {
		return nil, err
	}

	generationDate := req.GenerationDate
	if generationDate.IsZero() {
		generationDate = s.now()
	}

	adoptionCfg, err := s.adoption.Resolve(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.catalog.ListActiveRulesByPackType(ctx, req.PackType)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load the rule catalog")
	}

	rc := domain.RuleContext{
		CompanyID:      req.CompanyID,
		SiteIDs:        req.SiteIDs,
		AdoptionConfig: adoptionCfg,
		GenerationDate: generationDate,
	}

	result := &domain.PackGenerationResult{
		PackID:           uuid.New(),
		BlockingFailures: []domain.RuleEvaluation{},
		Warnings:         []domain.RuleEvaluation{},
		PassedRules:      []domain.RuleEvaluation{},
	}

	for _, rule := range catalog {
		ev := s.evaluateRule(ctx, rule, rc)
		metrics.RuleEvaluated(rule.ID, ev.Result.String())

		switch {
		case ev.IsBlockingFailure():
			result.BlockingFailures = append(result.BlockingFailures, ev)
		case ev.Result == domain.RuleResultWarning,
			ev.Result == domain.RuleResultFail && !ev.Blocking:
			result.Warnings = append(result.Warnings, ev)
		default:
			result.PassedRules = append(result.PassedRules, ev)
		}
	}

	result.CanGenerate = len(result.BlockingFailures) == 0
	result.Metadata = s.collectMetadata(ctx, req, generationDate)

	outcome := "approved"
	if !result.CanGenerate {
		outcome = "blocked"
	}
	metrics.ReadinessEvaluated(req.PackType.String(), outcome)

	s.logger.Info("Readiness evaluated",
		"company_id", req.CompanyID,
		"pack_type", req.PackType,
		"can_generate", result.CanGenerate,
		"blocking_failures", len(result.BlockingFailures),
		"warnings", len(result.Warnings),
		"passed", len(result.PassedRules),
	)
	return result, nil
}

// evaluateRule runs one handler, containing errors and panics: a rule that
// cannot be evaluated becomes a non-blocking warning carrying the error, so
// one broken handler never aborts the others and never silently passes.
func (s *readinessService) evaluateRule(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (ev domain.RuleEvaluation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Rule handler panicked",
				"rule_id", rule.ID,
				"handler_key", rule.HandlerKey,
				"panic", r,
			)
			ev = errorEvaluation(rule, fmt.Sprintf("rule handler panicked: %v", r))
		}
	}()

	handler := s.registry.Lookup(rule.HandlerKey)
	ev, err := handler.Evaluate(ctx, rule, rc)
	if err != nil {
		s.logger.Warn("Rule handler failed",
			"rule_id", rule.ID,
			"handler_key", rule.HandlerKey,
			"error", err,
		)
		return errorEvaluation(rule, err.Error())
	}

	// A handler must never mark anything but a failure as blocking.
	if ev.Result != domain.RuleResultFail {
		ev.Blocking = false
	}
	return ev
}

func errorEvaluation(rule domain.Rule, detail string) domain.RuleEvaluation {
	return domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
		Result:      domain.RuleResultWarning,
		Blocking:    false,
		Details:     "rule could not be evaluated: " + detail,
	}
}

// collectMetadata computes the informational coverage statistics. These
// never gate generation: a read failure here degrades the numbers, not the
// decision.
func (s *readinessService) collectMetadata(ctx context.Context, req domain.PackGenerationRequest, generationDate time.Time) domain.PackMetadata {
	var md domain.PackMetadata

	total, assessed, err := s.metadata.ObligationCoverage(ctx, req.SiteIDs)
	if err != nil {
		s.logger.Warn("Failed to read obligation coverage for metadata", "error", err)
	} else {
		md.ObligationsTotal = total
		md.ObligationsAssessed = assessed
	}

	count, err := s.metadata.CountEvidenceItems(ctx, req.SiteIDs)
	if err != nil {
		s.logger.Warn("Failed to count evidence items for metadata", "error", err)
	} else {
		md.EvidenceItemCount = count
	}

	hasRA, err := s.metadata.HasRiskAssessmentForYear(ctx, req.CompanyID, generationDate.Year())
	if err != nil {
		s.logger.Warn("Failed to check current-year risk assessment for metadata", "error", err)
	} else {
		md.HasCurrentRiskAssessment = hasRA
	}

	return md
}
