package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// =============================================================================
// Rule Catalog
// =============================================================================

// ListActiveRulesByPackType returns the active readiness rules applicable to
// the given pack type, in catalog display order.
func (s *Store) ListActiveRulesByPackType(ctx context.Context, packType domain.PackType) ([]domain.Rule, error) {
	const q = `
		SELECT id, description, pack_types, blocking, scope, handler_key, params, active
		FROM readiness_rules
		WHERE active = TRUE AND $1 = ANY(pack_types)
		ORDER BY display_order, id`

	rows, err := s.db.QueryContext(ctx, q, packType.String())
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		var (
			r         domain.Rule
			packTypes pq.StringArray
			scope     string
			params    []byte
		)
		if err := rows.Scan(&r.ID, &r.Description, &packTypes, &r.Blocking, &scope, &r.HandlerKey, &params, &r.Active); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		for _, pt := range packTypes {
			r.PackTypes = append(r.PackTypes, domain.PackType(pt))
		}
		r.Scope = domain.RuleScope(scope)
		if !r.Scope.IsValid() {
			s.logger.Warn("Rule has unrecognized scope", "rule_id", r.ID, "scope", scope)
		}
		r.Params = json.RawMessage(params)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// Adoption Config
// =============================================================================

// GetCompanyAdoption reads the company-level adoption mode, expiry and
// onboarding date.
func (s *Store) GetCompanyAdoption(ctx context.Context, companyID uuid.UUID) (domain.AdoptionConfig, error) {
	const q = `
		SELECT adoption_mode, adoption_mode_expiry, onboarding_date
		FROM companies
		WHERE id = $1`

	var (
		cfg    domain.AdoptionConfig
		mode   string
		expiry sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, companyID).Scan(&mode, &expiry, &cfg.OnboardingDate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AdoptionConfig{}, domain.NotFound("repository.GetCompanyAdoption", "company", companyID.String())
	}
	if err != nil {
		return domain.AdoptionConfig{}, fmt.Errorf("get company adoption: %w", err)
	}

	cfg.Mode = domain.AdoptionMode(mode)
	if expiry.Valid {
		t := expiry.Time
		cfg.ModeExpiry = &t
	}
	return cfg, nil
}

// ListRelaxedRuleIDs returns the rule ids with a relaxation recorded for the
// company. Whether a relaxation is in effect additionally depends on the
// company's adoption mode; see domain.AdoptionConfig.
func (s *Store) ListRelaxedRuleIDs(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	const q = `SELECT rule_id FROM company_rule_relaxations WHERE company_id = $1`

	rows, err := s.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list relaxed rules: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan relaxed rule id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TouchCompany verifies the company exists. Used before creating dependent
// records so foreign-key violations surface as not-found errors instead.
func (s *Store) TouchCompany(ctx context.Context, companyID uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE id = $1`, companyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("repository.TouchCompany", "company", companyID.String())
	}
	return err
}

// nullTime converts an optional time for binding.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
