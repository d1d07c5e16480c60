package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Detail Level
// =============================================================================

// DetailLevel controls how much granularity a board pack exposes.
type DetailLevel string

const (
	// DetailLevelAggregated shows rolled-up figures only. The board pack
	// default: fine-grained data requires an approved detail request.
	DetailLevelAggregated DetailLevel = "aggregated"

	// DetailLevelDetailed includes the enabled detail sections.
	DetailLevelDetailed DetailLevel = "detailed"
)

// IsValid returns true if the level is a recognized value.
func (l DetailLevel) IsValid() bool {
	return l == DetailLevelAggregated || l == DetailLevelDetailed
}

// =============================================================================
// Disclosure Level
// =============================================================================

// DisclosureLevel bounds how much incident detail a tender pack discloses
// once incident statistics are opted in.
type DisclosureLevel string

const (
	DisclosureLevelSummary DisclosureLevel = "summary" // counts and categories only
	DisclosureLevelFull    DisclosureLevel = "full"    // individual incident records
)

// IsValid returns true if the level is a recognized value.
func (l DisclosureLevel) IsValid() bool {
	return l == DisclosureLevelSummary || l == DisclosureLevelFull
}

// =============================================================================
// Pack Configuration (resolved)
// =============================================================================

// BoardConfig is the board-pack variant of a resolved configuration.
type BoardConfig struct {
	DetailLevel           DetailLevel `json:"detail_level"`
	DetailSectionsEnabled []string    `json:"detail_sections_enabled"`
}

// TenderConfig is the tender-pack variant of a resolved configuration.
type TenderConfig struct {
	IncludeIncidentStatistics bool           `json:"include_incident_statistics"`
	IncidentOptIn             *IncidentOptIn `json:"incident_opt_in,omitempty"`
}

// PackConfiguration is the resolved, pack-type-tagged configuration attached
// to every pack. Exactly the variant matching the pack type is set; the
// resolver constructs it, so invalid combinations are unrepresentable in
// practice. Regulator and audit packs carry no variant.
type PackConfiguration struct {
	PackType PackType      `json:"pack_type"`
	Board    *BoardConfig  `json:"board,omitempty"`
	Tender   *TenderConfig `json:"tender,omitempty"`
}

// PackConfigurationInput holds caller-supplied overrides before defaults are
// merged. Nil fields mean "use the pack-type default".
type PackConfigurationInput struct {
	DetailLevel               *DetailLevel
	DetailSectionsEnabled     []string
	IncludeIncidentStatistics *bool
}

// =============================================================================
// Governance: Board Pack Detail Requests
// =============================================================================

// DetailRequestStatus is the lifecycle of a board-pack detail-access
// request. There is no automatic approval.
type DetailRequestStatus string

const (
	DetailRequestPending  DetailRequestStatus = "pending"
	DetailRequestApproved DetailRequestStatus = "approved"
)

// DetailRequest records a request to enable a fine-grained section on a
// board pack.
type DetailRequest struct {
	ID            uuid.UUID
	PackID        uuid.UUID
	Section       string
	RequestedBy   uuid.UUID
	Justification string
	Status        DetailRequestStatus
	RequestedAt   time.Time
	ApprovedBy    *uuid.UUID
	ApprovedAt    *time.Time
}

// =============================================================================
// Governance: Tender Pack Incident Opt-In
// =============================================================================

// IncidentOptIn records a deliberate decision to include incident statistics
// in a tender pack. The snapshot is taken at opt-in time and is immutable
// once recorded, even if incidents are later edited, so the tender
// disclosure stays auditable.
type IncidentOptIn struct {
	PackID          uuid.UUID       `json:"pack_id"`
	ApprovedBy      uuid.UUID       `json:"approved_by"`
	ApprovedAt      time.Time       `json:"approved_at"`
	Justification   string          `json:"justification"`
	DisclosureLevel DisclosureLevel `json:"disclosure_level"`
	Snapshot        json.RawMessage `json:"snapshot"` // incident statistics frozen at opt-in
}

// IncidentStatistics is the snapshot payload frozen into an IncidentOptIn.
type IncidentStatistics struct {
	AsOf             time.Time      `json:"as_of"`
	TotalIncidents   int            `json:"total_incidents"`
	BySeverity       map[string]int `json:"by_severity"`
	OpenCount        int            `json:"open_count"`
	ReportableCount  int            `json:"reportable_count"`
	YearsCovered     int            `json:"years_covered"`
	HighestSeverity  string         `json:"highest_severity,omitempty"`
	LastIncidentDate *time.Time     `json:"last_incident_date,omitempty"`
}
