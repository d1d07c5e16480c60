package domain

import "time"

// =============================================================================
// Artifact Format
// =============================================================================

// ArtifactFormat identifies the rendered output format of a pack bundle.
type ArtifactFormat string

const (
	ArtifactFormatJSON ArtifactFormat = "json"
	ArtifactFormatHTML ArtifactFormat = "html"
)

// IsValid returns true if the format is a recognized value.
func (f ArtifactFormat) IsValid() bool {
	return f == ArtifactFormatJSON || f == ArtifactFormatHTML
}

// ContentType returns the MIME type for the format.
func (f ArtifactFormat) ContentType() string {
	switch f {
	case ArtifactFormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// =============================================================================
// Pack Artifact
// =============================================================================

// PackArtifact is the fully aggregated bundle handed to a renderer. The
// generation worker assembles it from the pack's persisted snapshot plus the
// audience-specific sections, then renders and uploads it.
type PackArtifact struct {
	Pack     Pack         `json:"pack"`
	Metadata PackMetadata `json:"metadata"`

	// PermitConditions are included in regulator and audit packs so the
	// recipient sees limits exactly as transcribed from the permit.
	PermitConditions []PermitCondition `json:"permit_conditions,omitempty"`

	// Trend is included in board packs.
	Trend *ComplianceTrend `json:"trend,omitempty"`

	// IncidentStatistics is the frozen opt-in snapshot, included only in
	// tender packs whose configuration opted in.
	IncidentStatistics *IncidentStatistics `json:"incident_statistics,omitempty"`

	RenderedAt time.Time `json:"rendered_at"`
}
