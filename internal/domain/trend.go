package domain

import "github.com/google/uuid"

// =============================================================================
// Compliance Trend
// =============================================================================

// TrendDirection classifies the year-over-year movement of a company's
// compliance score. Scores are violation points, so a lower total is better.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving" // current total strictly below previous
	TrendDeclining TrendDirection = "declining" // current total strictly above previous
	TrendStable    TrendDirection = "stable"    // equal totals
	TrendNew       TrendDirection = "new"       // no prior-year assessments exist
)

// SiteAssessment is one regulator scoring-scheme assessment for a site in a
// given year: a numeric score (violation points) and the resulting band.
type SiteAssessment struct {
	SiteID uuid.UUID
	Year   int
	Score  float64
	Band   string // compliance classification band, A (best) through F
}

// CorrectiveActionCounts tabulates the open remediation workload alongside
// the trend.
type CorrectiveActionCounts struct {
	Open    int `json:"open"`
	Overdue int `json:"overdue"`
}

// ComplianceTrend is the year-over-year summary consumed by the dashboard.
// Purely derived; computing it mutates nothing.
type ComplianceTrend struct {
	CompanyID         uuid.UUID               `json:"company_id"`
	Year              int                     `json:"year"`
	Direction         TrendDirection          `json:"direction"`
	CurrentTotal      float64                 `json:"current_total"`
	PreviousTotal     float64                 `json:"previous_total"`
	SiteAssessments   []SiteAssessment        `json:"site_assessments"`
	CorrectiveActions CorrectiveActionCounts  `json:"corrective_actions"`
	NonConformances   map[string]int          `json:"non_conformances_by_risk"` // risk category -> count
}
