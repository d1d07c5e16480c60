// Package domain contains core business types and interfaces.
//
// This file defines the compliance pack domain type, its status state
// machine, and the generation request/result types consumed by the
// readiness and generation services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Pack Type
// =============================================================================

// PackType identifies the audience a compliance pack is assembled for.
type PackType string

const (
	// PackTypeRegulator is an evidentiary pack for a regulator inspection.
	PackTypeRegulator PackType = "regulator"

	// PackTypeAudit is a pack assembled for an external auditor.
	PackTypeAudit PackType = "audit"

	// PackTypeBoard is a board-level summary pack. Defaults to aggregated
	// figures; fine-grained detail sections require an approved detail
	// request.
	PackTypeBoard PackType = "board"

	// PackTypeTender is a pack attached to a tender submission. Incident
	// statistics are excluded unless explicitly opted in with a recorded
	// approval.
	PackTypeTender PackType = "tender"
)

// String returns the string representation of the pack type.
func (t PackType) String() string {
	return string(t)
}

// IsValid returns true if the pack type is a recognized value.
func (t PackType) IsValid() bool {
	switch t {
	case PackTypeRegulator, PackTypeAudit, PackTypeBoard, PackTypeTender:
		return true
	}
	return false
}

// =============================================================================
// Pack Status
// =============================================================================

// PackStatus represents the lifecycle state of a pack. Transitions are
// one-directional; no state reverts.
type PackStatus string

const (
	// PackStatusDraft is the state-machine origin. A pack row is promoted
	// to generating before any caller can act on it.
	PackStatusDraft PackStatus = "draft"

	// PackStatusGenerating indicates a generation job has been dispatched
	// (or is about to be) and the worker has not yet reported back.
	PackStatusGenerating PackStatus = "generating"

	// PackStatusReady indicates generation finished. A ready pack without an
	// artifact reference was degraded after a dispatch failure and needs a
	// manual generation retry.
	PackStatusReady PackStatus = "ready"

	// PackStatusFailed indicates the generation worker reported an error.
	PackStatusFailed PackStatus = "failed"
)

// String returns the string representation of the status.
func (s PackStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s PackStatus) IsValid() bool {
	switch s {
	case PackStatusDraft, PackStatusGenerating, PackStatusReady, PackStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo checks if the pack can transition to the target status.
//
// Valid transitions:
// - draft -> generating (pack persisted and handed to dispatch)
// - generating -> ready (worker finished, or orchestrator degraded on dispatch failure)
// - generating -> failed (worker reported an error)
//
// ready and failed are terminal.
func (s PackStatus) CanTransitionTo(target PackStatus) bool {
	switch s {
	case PackStatusDraft:
		return target == PackStatusGenerating
	case PackStatusGenerating:
		return target == PackStatusReady || target == PackStatusFailed
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s PackStatus) IsTerminal() bool {
	return s == PackStatusReady || s == PackStatusFailed
}

// =============================================================================
// Pack Domain Type
// =============================================================================

// Pack is a bundled, versioned set of compliance evidence generated for a
// specific audience. Created when a generation request passes readiness;
// status is mutated only by the generation pipeline and never deleted by the
// engine (retention is managed externally).
type Pack struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	PackType  PackType
	SiteIDs   []uuid.UUID
	Status    PackStatus

	// Configuration as resolved at generation time, defaults applied.
	Configuration PackConfiguration

	// Snapshot of the readiness evaluation at generation time, kept so
	// auditors can see what passed and failed even if underlying records
	// later change.
	BlockingFailures []RuleEvaluation
	Warnings         []RuleEvaluation
	PassedRules      []RuleEvaluation

	GeneratedBy uuid.UUID
	GeneratedAt time.Time

	// ArtifactKey is the storage key of the rendered bundle, set by the
	// worker on completion. Empty on a degraded (ready, no artifact) pack.
	ArtifactKey string

	// NeedsManualGeneration is set when dispatch failed and the pack was
	// degraded to ready without an artifact.
	NeedsManualGeneration bool

	// JobID links the pack to its generation job, when one was dispatched.
	JobID *uuid.UUID

	// ExpiryDate marks when the pack becomes stale for audit purposes.
	// Enforcement is an external concern; the engine only stamps the date.
	ExpiryDate *time.Time

	ErrorMessage string // set when Status is failed
}

// HasArtifact returns true if a rendered bundle exists for this pack.
func (p *Pack) HasArtifact() bool {
	return p.ArtifactKey != ""
}

// IsExpired reports whether the pack is stale for audit purposes at the
// given time.
func (p *Pack) IsExpired(at time.Time) bool {
	return p.ExpiryDate != nil && p.ExpiryDate.Before(at)
}

// =============================================================================
// Generation Request
// =============================================================================

// PackGenerationRequest describes one request to evaluate or generate a
// pack. Transient: constructed per call, never persisted directly.
type PackGenerationRequest struct {
	CompanyID   uuid.UUID
	SiteIDs     []uuid.UUID // non-empty
	PackType    PackType
	DocumentIDs []uuid.UUID // optional explicit document selection
	PeriodStart *time.Time  // optional date range for included records
	PeriodEnd   *time.Time

	// Configuration holds caller-supplied overrides. Nil means pack-type
	// defaults apply unmodified.
	Configuration *PackConfigurationInput

	// GenerationDate is the evaluation reference date. The zero value means
	// "now", resolved once at the service boundary so rule handlers never
	// read the wall clock themselves.
	GenerationDate time.Time
}

// Validate checks the request's structural invariants.
func (r PackGenerationRequest) Validate() error {
	const op = "PackGenerationRequest.Validate"
	if r.CompanyID == uuid.Nil {
		return Invalid(op, "company id is required")
	}
	if len(r.SiteIDs) == 0 {
		return Invalid(op, "at least one site id is required")
	}
	if !r.PackType.IsValid() {
		return Invalid(op, "unknown pack type: "+string(r.PackType))
	}
	if r.PeriodStart != nil && r.PeriodEnd != nil && r.PeriodEnd.Before(*r.PeriodStart) {
		return Invalid(op, "period end precedes period start")
	}
	return nil
}

// =============================================================================
// Generation Result
// =============================================================================

// PackMetadata carries informational coverage statistics computed alongside
// the rule evaluations. It never gates generation.
type PackMetadata struct {
	ObligationsTotal         int  `json:"obligations_total"`
	ObligationsAssessed      int  `json:"obligations_assessed"`
	EvidenceItemCount        int  `json:"evidence_item_count"`
	HasCurrentRiskAssessment bool `json:"has_current_risk_assessment"`
}

// PackGenerationResult is the outcome of a readiness evaluation.
//
// Invariant: CanGenerate == (len(BlockingFailures) == 0).
type PackGenerationResult struct {
	PackID           uuid.UUID        `json:"pack_id"` // freshly generated identifier
	CanGenerate      bool             `json:"can_generate"`
	BlockingFailures []RuleEvaluation `json:"blocking_failures"`
	Warnings         []RuleEvaluation `json:"warnings"`
	PassedRules      []RuleEvaluation `json:"passed_rules"`
	Metadata         PackMetadata     `json:"pack_metadata"`
}
