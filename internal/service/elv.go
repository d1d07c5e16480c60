package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ElvService checks measured emission values against permit limit
// conditions.
type ElvService interface {
	// CheckCompliance compares a measurement against the stored permit
	// limit. The comparison uses the permit's values exactly as
	// transcribed; no unit conversion, rounding or tolerance is applied.
	CheckCompliance(ctx context.Context, input ElvCheckInput) (*domain.ElvComplianceCheckResult, error)
}

// ElvCheckInput is a single measurement to check.
type ElvCheckInput struct {
	ConditionID         uuid.UUID
	MeasuredValue       float64
	MeasuredUnit        string
	ReferenceConditions string
}

// PermitConditionStore provides permit limit lookups.
type PermitConditionStore interface {
	GetPermitCondition(ctx context.Context, id uuid.UUID) (*domain.PermitCondition, error)
}

// =============================================================================
// Implementation
// =============================================================================

type elvService struct {
	store  PermitConditionStore
	logger *slog.Logger
	now    func() time.Time
}

// NewElvService creates a new ElvService.
func NewElvService(store PermitConditionStore, logger *slog.Logger) ElvService {
	return &elvService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CheckCompliance performs the verbatim-value comparison.
//
// Units must match the permit's unit string exactly; a differing unit is an
// error, never an implicit conversion. When the measurement declares
// reference conditions, they must match what the permit records; declaring
// conditions against a permit that records none is a mismatch.
// The boundary case measured == limit is compliant: permits phrase limits
// as "shall not exceed".
func (s *elvService) CheckCompliance(ctx context.Context, input ElvCheckInput) (*domain.ElvComplianceCheckResult, error) {
	const op = "elv.check"

	cond, err := s.store.GetPermitCondition(ctx, input.ConditionID)
	if err != nil {
		return nil, err
	}

	if !unitsEqual(input.MeasuredUnit, cond.Unit) {
		return nil, domain.UnitMismatch(op, input.MeasuredUnit, cond.Unit)
	}
	if input.ReferenceConditions != "" &&
		!strings.EqualFold(strings.TrimSpace(input.ReferenceConditions), strings.TrimSpace(cond.ReferenceConditions)) {
		return nil, domain.ReferenceConditionMismatch(op, input.ReferenceConditions, cond.ReferenceConditions)
	}

	result := &domain.ElvComplianceCheckResult{
		MeasuredValue:      input.MeasuredValue,
		MeasuredUnit:       input.MeasuredUnit,
		LimitValue:         cond.LimitValue,
		LimitUnit:          cond.Unit,
		LimitSource:        cond.SourceCitation,
		VerbatimPermitText: cond.SourceText,
		CheckedAt:          s.now(),
	}

	defer func() { metrics.ElvChecked(string(result.Status)) }()

	if input.MeasuredValue <= cond.LimitValue {
		result.Status = domain.ElvCompliant
		result.Headroom = cond.LimitValue - input.MeasuredValue
		if cond.LimitValue != 0 {
			result.HeadroomPercentage = result.Headroom / cond.LimitValue * 100
		}
	} else {
		result.Status = domain.ElvNonCompliant
		result.Exceedance = input.MeasuredValue - cond.LimitValue

		s.logger.Warn("Emission limit exceeded",
			"condition_id", cond.ID,
			"pollutant", cond.Pollutant,
			"measured", input.MeasuredValue,
			"limit", cond.LimitValue,
			"unit", cond.Unit,
		)
	}

	return result, nil
}

// unitsEqual compares unit strings ignoring case and surrounding whitespace
// only. "mg/m3" and "mg/Nm3" are different units and stay different.
func unitsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
