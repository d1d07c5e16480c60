package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
)

// This file implements the read-only compliance record queries consumed by
// the rule handlers, the readiness metadata, the trend aggregator and the
// ELV checker. The tables are populated by the CRUD layer, which is outside
// the engine.

// =============================================================================
// Rule handler reads (rules.DataReader)
// =============================================================================

// ObligationCoverage returns total and assessed obligation counts for the
// sites.
func (s *Store) ObligationCoverage(ctx context.Context, siteIDs []uuid.UUID) (int, int, error) {
	const q = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE assessed)
		FROM obligations
		WHERE site_id = ANY($1::uuid[])`

	var total, assessed int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs)).Scan(&total, &assessed); err != nil {
		return 0, 0, fmt.Errorf("obligation coverage: %w", err)
	}
	return total, assessed, nil
}

// ConditionCoverage returns total and assessed permit condition counts for
// the sites.
func (s *Store) ConditionCoverage(ctx context.Context, siteIDs []uuid.UUID) (int, int, error) {
	const q = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE assessed)
		FROM permit_conditions pc
		JOIN documents d ON d.id = pc.document_id
		WHERE d.site_id = ANY($1::uuid[])`

	var total, assessed int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs)).Scan(&total, &assessed); err != nil {
		return 0, 0, fmt.Errorf("condition coverage: %w", err)
	}
	return total, assessed, nil
}

// CountEvidenceInWindow counts evidence items of a type dated within the
// window.
func (s *Store) CountEvidenceInWindow(ctx context.Context, siteIDs []uuid.UUID, evidenceType string, from, to time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM evidence_items
		WHERE site_id = ANY($1::uuid[])
		  AND evidence_type = $2
		  AND evidence_date BETWEEN $3 AND $4`

	var count int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs), evidenceType, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("count evidence in window: %w", err)
	}
	return count, nil
}

// ListDocumentsByType returns the sites' documents of the given type.
func (s *Store) ListDocumentsByType(ctx context.Context, siteIDs []uuid.UUID, documentType string) ([]domain.Document, error) {
	const q = `
		SELECT id, site_id, title, document_type, reference, status, issued_date
		FROM documents
		WHERE site_id = ANY($1::uuid[]) AND document_type = $2
		ORDER BY issued_date`

	rows, err := s.db.QueryContext(ctx, q, uuidStrings(siteIDs), documentType)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d      domain.Document
			status string
		)
		if err := rows.Scan(&d.ID, &d.SiteID, &d.Title, &d.DocumentType, &d.Reference, &status, &d.IssuedDate); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Status = domain.DocumentStatus(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// HasEvidenceMarker reports whether any evidence item carrying the marker
// exists for the sites.
func (s *Store) HasEvidenceMarker(ctx context.Context, siteIDs []uuid.UUID, marker string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM evidence_items
			WHERE site_id = ANY($1::uuid[]) AND $2 = ANY(markers)
		)`

	var found bool
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs), marker).Scan(&found); err != nil {
		return false, fmt.Errorf("check evidence marker: %w", err)
	}
	return found, nil
}

// CountUnlinkedNonConformances counts non-conformances of the given severity
// with no linked corrective action.
func (s *Store) CountUnlinkedNonConformances(ctx context.Context, siteIDs []uuid.UUID, severity string) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM non_conformances
		WHERE site_id = ANY($1::uuid[])
		  AND severity = $2
		  AND corrective_action_id IS NULL`

	var count int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs), severity).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unlinked non-conformances: %w", err)
	}
	return count, nil
}

// CountNonConformancesByCategoryInYear counts non-conformances of a risk
// category dated within the calendar year.
func (s *Store) CountNonConformancesByCategoryInYear(ctx context.Context, siteIDs []uuid.UUID, category, year int) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM non_conformances
		WHERE site_id = ANY($1::uuid[])
		  AND risk_category = $2
		  AND EXTRACT(YEAR FROM occurred_at) = $3`

	var count int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs), category, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("count non-conformances by category: %w", err)
	}
	return count, nil
}

// EarliestEvidenceDate returns the oldest evidence date for the sites, or
// nil when no evidence exists.
func (s *Store) EarliestEvidenceDate(ctx context.Context, siteIDs []uuid.UUID) (*time.Time, error) {
	const q = `SELECT MIN(evidence_date) FROM evidence_items WHERE site_id = ANY($1::uuid[])`

	var earliest sql.NullTime
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs)).Scan(&earliest); err != nil {
		return nil, fmt.Errorf("earliest evidence date: %w", err)
	}
	if !earliest.Valid {
		return nil, nil
	}
	t := earliest.Time
	return &t, nil
}

// =============================================================================
// Readiness metadata reads
// =============================================================================

// CountEvidenceItems counts all evidence items for the sites.
func (s *Store) CountEvidenceItems(ctx context.Context, siteIDs []uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM evidence_items WHERE site_id = ANY($1::uuid[])`

	var count int
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count evidence items: %w", err)
	}
	return count, nil
}

// HasRiskAssessmentForYear reports whether the company has a risk assessment
// recorded for the given year.
func (s *Store) HasRiskAssessmentForYear(ctx context.Context, companyID uuid.UUID, year int) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM risk_assessments WHERE company_id = $1 AND assessment_year = $2
		)`

	var found bool
	if err := s.db.QueryRowContext(ctx, q, companyID, year).Scan(&found); err != nil {
		return false, fmt.Errorf("check risk assessment: %w", err)
	}
	return found, nil
}

// =============================================================================
// ELV reads
// =============================================================================

// GetPermitCondition returns a permit limit condition by id.
func (s *Store) GetPermitCondition(ctx context.Context, id uuid.UUID) (*domain.PermitCondition, error) {
	const q = `
		SELECT id, document_id, pollutant, limit_value, unit,
		       COALESCE(reference_conditions, ''), source_text, source_citation
		FROM permit_conditions
		WHERE id = $1`

	var c domain.PermitCondition
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.DocumentID, &c.Pollutant, &c.LimitValue, &c.Unit,
		&c.ReferenceConditions, &c.SourceText, &c.SourceCitation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("repository.GetPermitCondition", "permit condition", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get permit condition: %w", err)
	}
	return &c, nil
}

// ListPermitConditionsBySites returns every limit condition on the sites'
// permit documents, ordered for stable artifact output.
func (s *Store) ListPermitConditionsBySites(ctx context.Context, siteIDs []uuid.UUID) ([]domain.PermitCondition, error) {
	const q = `
		SELECT pc.id, pc.document_id, pc.pollutant, pc.limit_value, pc.unit,
		       COALESCE(pc.reference_conditions, ''), pc.source_text, pc.source_citation
		FROM permit_conditions pc
		JOIN documents d ON d.id = pc.document_id
		WHERE d.site_id = ANY($1::uuid[])
		ORDER BY pc.pollutant, pc.id`

	rows, err := s.db.QueryContext(ctx, q, uuidStrings(siteIDs))
	if err != nil {
		return nil, fmt.Errorf("list permit conditions: %w", err)
	}
	defer rows.Close()

	var conditions []domain.PermitCondition
	for rows.Next() {
		var c domain.PermitCondition
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Pollutant, &c.LimitValue, &c.Unit,
			&c.ReferenceConditions, &c.SourceText, &c.SourceCitation,
		); err != nil {
			return nil, fmt.Errorf("scan permit condition: %w", err)
		}
		conditions = append(conditions, c)
	}
	return conditions, rows.Err()
}

// =============================================================================
// Trend reads
// =============================================================================

// ListSiteAssessments returns the sites' scoring-scheme assessments for a
// year.
func (s *Store) ListSiteAssessments(ctx context.Context, siteIDs []uuid.UUID, year int) ([]domain.SiteAssessment, error) {
	const q = `
		SELECT site_id, assessment_year, score, band
		FROM site_assessments
		WHERE site_id = ANY($1::uuid[]) AND assessment_year = $2
		ORDER BY site_id`

	rows, err := s.db.QueryContext(ctx, q, uuidStrings(siteIDs), year)
	if err != nil {
		return nil, fmt.Errorf("list site assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.SiteAssessment
	for rows.Next() {
		var a domain.SiteAssessment
		if err := rows.Scan(&a.SiteID, &a.Year, &a.Score, &a.Band); err != nil {
			return nil, fmt.Errorf("scan site assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CorrectiveActionCounts tabulates open and overdue corrective actions for
// the sites as of the given date.
func (s *Store) CorrectiveActionCounts(ctx context.Context, siteIDs []uuid.UUID, asOf time.Time) (domain.CorrectiveActionCounts, error) {
	const q = `
		SELECT COUNT(*) FILTER (WHERE status = 'open'),
		       COUNT(*) FILTER (WHERE status = 'open' AND due_date < $2)
		FROM corrective_actions
		WHERE site_id = ANY($1::uuid[])`

	var counts domain.CorrectiveActionCounts
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs), asOf).Scan(&counts.Open, &counts.Overdue); err != nil {
		return domain.CorrectiveActionCounts{}, fmt.Errorf("corrective action counts: %w", err)
	}
	return counts, nil
}

// NonConformanceBreakdown returns non-conformance counts by risk category
// for the sites within a calendar year.
func (s *Store) NonConformanceBreakdown(ctx context.Context, siteIDs []uuid.UUID, year int) (map[string]int, error) {
	const q = `
		SELECT 'category_' || risk_category, COUNT(*)
		FROM non_conformances
		WHERE site_id = ANY($1::uuid[]) AND EXTRACT(YEAR FROM occurred_at) = $2
		GROUP BY risk_category`

	rows, err := s.db.QueryContext(ctx, q, uuidStrings(siteIDs), year)
	if err != nil {
		return nil, fmt.Errorf("non-conformance breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		breakdown[category] = count
	}
	return breakdown, rows.Err()
}

// =============================================================================
// Incident statistics (tender opt-in snapshot source)
// =============================================================================

// IncidentStatistics aggregates the sites' incident records for the opt-in
// snapshot.
func (s *Store) IncidentStatistics(ctx context.Context, siteIDs []uuid.UUID, asOf time.Time) (domain.IncidentStatistics, error) {
	const q = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'open'),
		       COUNT(*) FILTER (WHERE reportable),
		       COUNT(DISTINCT EXTRACT(YEAR FROM occurred_at)),
		       COALESCE(MAX(occurred_at), 'epoch'::timestamptz)
		FROM incidents
		WHERE site_id = ANY($1::uuid[])`

	stats := domain.IncidentStatistics{AsOf: asOf, BySeverity: make(map[string]int)}
	var last time.Time
	if err := s.db.QueryRowContext(ctx, q, uuidStrings(siteIDs)).Scan(
		&stats.TotalIncidents, &stats.OpenCount, &stats.ReportableCount, &stats.YearsCovered, &last,
	); err != nil {
		return domain.IncidentStatistics{}, fmt.Errorf("incident statistics: %w", err)
	}
	if stats.TotalIncidents > 0 {
		stats.LastIncidentDate = &last
	}

	const bySeverity = `
		SELECT severity, COUNT(*)
		FROM incidents
		WHERE site_id = ANY($1::uuid[])
		GROUP BY severity
		ORDER BY CASE severity
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1
		END`

	rows, err := s.db.QueryContext(ctx, bySeverity, uuidStrings(siteIDs))
	if err != nil {
		return domain.IncidentStatistics{}, fmt.Errorf("incident severity breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return domain.IncidentStatistics{}, fmt.Errorf("scan severity row: %w", err)
		}
		stats.BySeverity[severity] = count
		stats.HighestSeverity = severity
	}
	return stats, rows.Err()
}
