// Package service contains the business logic layer.
//
// This file implements the adoption config resolver: the engine's view of a
// company's adoption mode and active rule relaxations.
package service

import (
	"context"
	"log/slog"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AdoptionResolver resolves a company's adoption configuration.
type AdoptionResolver interface {
	// Resolve reads the company's adoption mode, expiry, onboarding date and
	// active per-rule relaxations.
	Resolve(ctx context.Context, companyID uuid.UUID) (domain.AdoptionConfig, error)
}

// AdoptionStore is the data access the resolver needs.
type AdoptionStore interface {
	GetCompanyAdoption(ctx context.Context, companyID uuid.UUID) (domain.AdoptionConfig, error)
	ListRelaxedRuleIDs(ctx context.Context, companyID uuid.UUID) ([]string, error)
}

// =============================================================================
// Implementation
// =============================================================================

type adoptionResolver struct {
	store  AdoptionStore
	logger *slog.Logger
}

// NewAdoptionResolver creates a new AdoptionResolver.
func NewAdoptionResolver(store AdoptionStore, logger *slog.Logger) AdoptionResolver {
	return &adoptionResolver{store: store, logger: logger}
}

// Resolve reads the company's adoption configuration. The relaxation lookup
// is secondary data: a read failure is logged and the evaluation proceeds
// with an empty relaxation set, because a secondary-data outage must never
// block pack generation. The aggregator additionally gates every relaxation
// on the adoption mode, so stale relaxation rows for a standard-mode company
// have no effect either way.
func (s *adoptionResolver) Resolve(ctx context.Context, companyID uuid.UUID) (domain.AdoptionConfig, error) {
	cfg, err := s.store.GetCompanyAdoption(ctx, companyID)
	if err != nil {
		return domain.AdoptionConfig{}, err
	}

	cfg.RelaxedRules = make(map[string]bool)

	ruleIDs, err := s.store.ListRelaxedRuleIDs(ctx, companyID)
	if err != nil {
		s.logger.Warn("Failed to load rule relaxations, proceeding with none",
			"company_id", companyID,
			"error", err,
		)
		return cfg, nil
	}
	for _, id := range ruleIDs {
		cfg.RelaxedRules[id] = true
	}
	return cfg, nil
}
