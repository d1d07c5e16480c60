package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Permit Limit Conditions (ELVs)
// =============================================================================

// PermitCondition is an emission limit value (ELV) recorded on a permit: a
// numeric ceiling for a pollutant with a fixed unit and reference
// conditions, plus the verbatim text it was transcribed from.
type PermitCondition struct {
	ID                  uuid.UUID
	DocumentID          uuid.UUID // owning permit document
	Pollutant           string
	LimitValue          float64
	Unit                string
	ReferenceConditions string // e.g. "273K, 101.3kPa, dry gas, 3% O2"; empty if none recorded
	SourceText          string // verbatim permit wording the limit was taken from
	SourceCitation      string // e.g. "Permit EPR/AB1234CD, Table S3.1, condition 2.4"
}

// =============================================================================
// ELV Compliance Check
// =============================================================================

// ElvComplianceStatus is the outcome of a verbatim-value compliance check.
type ElvComplianceStatus string

const (
	ElvCompliant    ElvComplianceStatus = "compliant"
	ElvNonCompliant ElvComplianceStatus = "non_compliant"
)

// ElvComplianceCheckResult reports a single measurement checked against a
// permit limit. The permit's verbatim text and citation are always echoed so
// downstream consumers never re-derive what the permit actually said.
type ElvComplianceCheckResult struct {
	Status             ElvComplianceStatus `json:"status"`
	MeasuredValue      float64             `json:"measured_value"`
	MeasuredUnit       string              `json:"measured_unit"`
	LimitValue         float64             `json:"limit_value"`
	LimitUnit          string              `json:"limit_unit"`
	LimitSource        string              `json:"limit_source"`
	VerbatimPermitText string              `json:"verbatim_permit_text"`

	// Set when non-compliant.
	Exceedance float64 `json:"exceedance,omitempty"`

	// Set when compliant.
	Headroom           float64 `json:"headroom,omitempty"`
	HeadroomPercentage float64 `json:"headroom_percentage,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}
