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
)

// This file holds the governance-workflow records: board-pack detail-access
// requests and tender-pack incident opt-ins.

// =============================================================================
// Board Pack Detail Requests
// =============================================================================

// CreateDetailRequest inserts a pending detail-access request.
func (s *Store) CreateDetailRequest(ctx context.Context, req domain.DetailRequest) error {
	const q = `
		INSERT INTO pack_detail_requests (
			id, pack_id, section, requested_by, justification, status, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, q,
		req.ID, req.PackID, req.Section, req.RequestedBy,
		req.Justification, string(req.Status), req.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert detail request: %w", err)
	}
	return nil
}

// GetDetailRequest fetches a detail request by id.
func (s *Store) GetDetailRequest(ctx context.Context, id uuid.UUID) (*domain.DetailRequest, error) {
	const q = `
		SELECT id, pack_id, section, requested_by, justification, status,
		       requested_at, approved_by, approved_at
		FROM pack_detail_requests
		WHERE id = $1`

	var (
		req        domain.DetailRequest
		status     string
		approvedBy uuid.NullUUID
		approvedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&req.ID, &req.PackID, &req.Section, &req.RequestedBy, &req.Justification,
		&status, &req.RequestedAt, &approvedBy, &approvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("repository.GetDetailRequest", "detail request", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get detail request: %w", err)
	}

	req.Status = domain.DetailRequestStatus(status)
	if approvedBy.Valid {
		id := approvedBy.UUID
		req.ApprovedBy = &id
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		req.ApprovedAt = &t
	}
	return &req, nil
}

// ApproveDetailRequest marks a pending request approved and enables the
// section on the pack's board configuration. The status guard makes approval
// idempotent-safe: a second approval affects zero rows and reports conflict.
func (s *Store) ApproveDetailRequest(ctx context.Context, id, approvedBy uuid.UUID, approvedAt time.Time) error {
	const q = `
		UPDATE pack_detail_requests
		SET status = $2, approved_by = $3, approved_at = $4
		WHERE id = $1 AND status = $5`

	res, err := s.db.ExecContext(ctx, q, id,
		string(domain.DetailRequestApproved), approvedBy, approvedAt,
		string(domain.DetailRequestPending),
	)
	if err != nil {
		return fmt.Errorf("approve detail request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve detail request rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict("repository.ApproveDetailRequest", fmt.Sprintf("detail request %s is not pending", id))
	}
	return nil
}

// EnableDetailSection appends the section to the pack's board configuration.
func (s *Store) EnableDetailSection(ctx context.Context, packID uuid.UUID, section string) error {
	// jsonb array append, guarded against duplicates.
	const q = `
		UPDATE packs
		SET configuration = jsonb_set(
			configuration,
			'{board,detail_sections_enabled}',
			COALESCE(configuration#>'{board,detail_sections_enabled}', '[]'::jsonb) || to_jsonb($2::text)
		),
		updated_at = NOW()
		WHERE id = $1
		  AND NOT COALESCE(configuration#>'{board,detail_sections_enabled}', '[]'::jsonb) ? $2`

	if _, err := s.db.ExecContext(ctx, q, packID, section); err != nil {
		return fmt.Errorf("enable detail section: %w", err)
	}
	return nil
}

// =============================================================================
// Tender Pack Incident Opt-Ins
// =============================================================================

// CreateIncidentOptIn records a tender pack's incident disclosure opt-in
// with its frozen statistics snapshot. One opt-in per pack; a second insert
// reports conflict so the original snapshot can never be replaced.
func (s *Store) CreateIncidentOptIn(ctx context.Context, optIn domain.IncidentOptIn) error {
	const q = `
		INSERT INTO pack_incident_optins (
			pack_id, approved_by, approved_at, justification, disclosure_level, snapshot
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pack_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q,
		optIn.PackID, optIn.ApprovedBy, optIn.ApprovedAt,
		optIn.Justification, string(optIn.DisclosureLevel),
		nullRawMessage(optIn.Snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert incident opt-in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert incident opt-in rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict("repository.CreateIncidentOptIn", fmt.Sprintf("pack %s already has an incident opt-in", optIn.PackID))
	}
	return nil
}

// GetIncidentOptIn fetches a pack's incident opt-in, if any.
func (s *Store) GetIncidentOptIn(ctx context.Context, packID uuid.UUID) (*domain.IncidentOptIn, error) {
	const q = `
		SELECT pack_id, approved_by, approved_at, justification, disclosure_level, snapshot
		FROM pack_incident_optins
		WHERE pack_id = $1`

	var (
		optIn    domain.IncidentOptIn
		level    string
		snapshot []byte
	)
	err := s.db.QueryRowContext(ctx, q, packID).Scan(
		&optIn.PackID, &optIn.ApprovedBy, &optIn.ApprovedAt,
		&optIn.Justification, &level, &snapshot,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("repository.GetIncidentOptIn", "incident opt-in", packID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get incident opt-in: %w", err)
	}

	optIn.DisclosureLevel = domain.DisclosureLevel(level)
	optIn.Snapshot = json.RawMessage(snapshot)
	return &optIn, nil
}

// MarkIncidentStatisticsIncluded flips the tender configuration flag on the
// pack after the opt-in is recorded.
func (s *Store) MarkIncidentStatisticsIncluded(ctx context.Context, packID uuid.UUID) error {
	const q = `
		UPDATE packs
		SET configuration = jsonb_set(configuration, '{tender,include_incident_statistics}', 'true'::jsonb),
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, packID); err != nil {
		return fmt.Errorf("mark incident statistics included: %w", err)
	}
	return nil
}
