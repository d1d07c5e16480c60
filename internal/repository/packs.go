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
	"github.com/sqlc-dev/pqtype"
)

// CreatePackParams carries everything persisted when a generation request is
// approved.
type CreatePackParams struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	PackType         domain.PackType
	SiteIDs          []uuid.UUID
	Status           domain.PackStatus
	Configuration    domain.PackConfiguration
	BlockingFailures []domain.RuleEvaluation
	Warnings         []domain.RuleEvaluation
	PassedRules      []domain.RuleEvaluation
	Metadata         domain.PackMetadata
	GeneratedBy      uuid.UUID
	GeneratedAt      time.Time
	ExpiryDate       *time.Time
}

// CreatePack inserts a pack row with its evaluation snapshot.
func (s *Store) CreatePack(ctx context.Context, params CreatePackParams) (*domain.Pack, error) {
	configJSON, err := json.Marshal(params.Configuration)
	if err != nil {
		return nil, fmt.Errorf("marshal configuration: %w", err)
	}
	blockingJSON, err := json.Marshal(params.BlockingFailures)
	if err != nil {
		return nil, fmt.Errorf("marshal blocking failures: %w", err)
	}
	warningsJSON, err := json.Marshal(params.Warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}
	passedJSON, err := json.Marshal(params.PassedRules)
	if err != nil {
		return nil, fmt.Errorf("marshal passed rules: %w", err)
	}
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO packs (
			id, company_id, pack_type, site_ids, status, configuration,
			blocking_failures, warnings, passed_rules, metadata,
			generated_by, generated_at, expiry_date
		)
		VALUES ($1, $2, $3, $4::uuid[], $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.db.ExecContext(ctx, q,
		params.ID, params.CompanyID, params.PackType.String(), uuidStrings(params.SiteIDs),
		params.Status.String(), configJSON, blockingJSON, warningsJSON, passedJSON,
		metadataJSON, params.GeneratedBy, params.GeneratedAt, nullTime(params.ExpiryDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert pack: %w", err)
	}
	return s.GetPackByID(ctx, params.ID)
}

// GetPackByID fetches a pack with its evaluation snapshot.
func (s *Store) GetPackByID(ctx context.Context, id uuid.UUID) (*domain.Pack, error) {
	const q = `
		SELECT id, company_id, pack_type, site_ids, status, configuration,
		       blocking_failures, warnings, passed_rules,
		       generated_by, generated_at, COALESCE(artifact_key, ''),
		       needs_manual_generation, job_id, expiry_date, COALESCE(error_message, '')
		FROM packs
		WHERE id = $1`

	return s.scanPack(s.db.QueryRowContext(ctx, q, id))
}

// ListPacksByCompany returns a company's packs, newest first.
func (s *Store) ListPacksByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.Pack, error) {
	const q = `
		SELECT id, company_id, pack_type, site_ids, status, configuration,
		       blocking_failures, warnings, passed_rules,
		       generated_by, generated_at, COALESCE(artifact_key, ''),
		       needs_manual_generation, job_id, expiry_date, COALESCE(error_message, '')
		FROM packs
		WHERE company_id = $1
		ORDER BY generated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, q, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		p, err := s.scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, *p)
	}
	return packs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanPack(row rowScanner) (*domain.Pack, error) {
	var (
		p            domain.Pack
		packType     string
		siteIDs      pq.StringArray
		status       string
		configJSON   []byte
		blockingJSON []byte
		warningsJSON []byte
		passedJSON   []byte
		jobID        uuid.NullUUID
		expiry       sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.CompanyID, &packType, &siteIDs, &status, &configJSON,
		&blockingJSON, &warningsJSON, &passedJSON,
		&p.GeneratedBy, &p.GeneratedAt, &p.ArtifactKey,
		&p.NeedsManualGeneration, &jobID, &expiry, &p.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("repository.GetPackByID", "pack", "")
	}
	if err != nil {
		return nil, fmt.Errorf("scan pack: %w", err)
	}

	p.PackType = domain.PackType(packType)
	p.SiteIDs = parseUUIDs(siteIDs)
	p.Status = domain.PackStatus(status)
	if err := json.Unmarshal(configJSON, &p.Configuration); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := json.Unmarshal(blockingJSON, &p.BlockingFailures); err != nil {
		return nil, fmt.Errorf("unmarshal blocking failures: %w", err)
	}
	if err := json.Unmarshal(warningsJSON, &p.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	if err := json.Unmarshal(passedJSON, &p.PassedRules); err != nil {
		return nil, fmt.Errorf("unmarshal passed rules: %w", err)
	}
	if jobID.Valid {
		id := jobID.UUID
		p.JobID = &id
	}
	if expiry.Valid {
		t := expiry.Time
		p.ExpiryDate = &t
	}
	return &p, nil
}

// =============================================================================
// Status transitions
// =============================================================================

// TransitionPackStatus moves a pack from one status to another. The guard is
// in the WHERE clause, so a stale or duplicate transition affects zero rows
// and returns a conflict instead of corrupting state.
func (s *Store) TransitionPackStatus(ctx context.Context, id uuid.UUID, from, to domain.PackStatus) error {
	const op = "repository.TransitionPackStatus"
	if !from.CanTransitionTo(to) {
		return domain.Conflict(op, fmt.Sprintf("pack status cannot move from %s to %s", from, to))
	}

	const q = `UPDATE packs SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := s.db.ExecContext(ctx, q, id, from.String(), to.String())
	if err != nil {
		return fmt.Errorf("transition pack status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition pack status rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict(op, fmt.Sprintf("pack %s is not in status %s", id, from))
	}
	return nil
}

// MarkPackDispatched records the generation job linked to the pack.
func (s *Store) MarkPackDispatched(ctx context.Context, id, jobID uuid.UUID) error {
	const q = `UPDATE packs SET job_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, jobID); err != nil {
		return fmt.Errorf("mark pack dispatched: %w", err)
	}
	return nil
}

// DegradePack moves a generating pack to ready with no artifact and flags it
// for manual generation. Used when dispatch infrastructure is unavailable:
// the readiness work already performed is preserved rather than failing the
// request.
func (s *Store) DegradePack(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE packs
		SET status = $2, needs_manual_generation = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	res, err := s.db.ExecContext(ctx, q, id, domain.PackStatusReady.String(), domain.PackStatusGenerating.String())
	if err != nil {
		return fmt.Errorf("degrade pack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("degrade pack rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict("repository.DegradePack", fmt.Sprintf("pack %s is not generating", id))
	}
	return nil
}

// CompletePack moves a generating pack to ready with its artifact key.
func (s *Store) CompletePack(ctx context.Context, id uuid.UUID, artifactKey string) error {
	const q = `
		UPDATE packs
		SET status = $2, artifact_key = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	res, err := s.db.ExecContext(ctx, q, id, domain.PackStatusReady.String(), artifactKey, domain.PackStatusGenerating.String())
	if err != nil {
		return fmt.Errorf("complete pack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete pack rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict("repository.CompletePack", fmt.Sprintf("pack %s is not generating", id))
	}
	return nil
}

// FailPack moves a generating pack to failed with the worker's error.
func (s *Store) FailPack(ctx context.Context, id uuid.UUID, errorMessage string) error {
	const q = `
		UPDATE packs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	res, err := s.db.ExecContext(ctx, q, id, domain.PackStatusFailed.String(), errorMessage, domain.PackStatusGenerating.String())
	if err != nil {
		return fmt.Errorf("fail pack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail pack rows: %w", err)
	}
	if n == 0 {
		return domain.Conflict("repository.FailPack", fmt.Sprintf("pack %s is not generating", id))
	}
	return nil
}

// nullRawMessage wraps optional JSON for binding.
func nullRawMessage(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}
