package domain

import (
	"time"
)

// AdoptionMode controls how historical-evidence rules treat a company's
// lookback windows.
type AdoptionMode string

const (
	// AdoptionModeStandard applies each rule's fixed-duration lookback.
	AdoptionModeStandard AdoptionMode = "standard"

	// AdoptionModeFirstYear relaxes historical lookbacks for newly onboarded
	// companies: relaxed rules measure evidence from the onboarding date
	// instead of a multi-year window.
	AdoptionModeFirstYear AdoptionMode = "first_year"
)

// IsValid returns true if the mode is a recognized value.
func (m AdoptionMode) IsValid() bool {
	return m == AdoptionModeStandard || m == AdoptionModeFirstYear
}

// AdoptionConfig is a company's adoption mode plus its active per-rule
// relaxations. Owned by the company record; read-only to the engine.
type AdoptionConfig struct {
	Mode           AdoptionMode
	ModeExpiry     *time.Time // first-year mode lapses after this date, if set
	OnboardingDate time.Time
	RelaxedRules   map[string]bool // rule ids with an active relaxation
}

// EffectiveMode returns the mode in force at the given evaluation date.
// A first-year mode whose expiry has passed behaves as standard.
func (c AdoptionConfig) EffectiveMode(at time.Time) AdoptionMode {
	if c.Mode == AdoptionModeFirstYear {
		if c.ModeExpiry != nil && c.ModeExpiry.Before(at) {
			return AdoptionModeStandard
		}
		return AdoptionModeFirstYear
	}
	return AdoptionModeStandard
}

// IsRuleRelaxed reports whether the named rule is relaxed for evaluations at
// the given date. Relaxation records recorded for a company in standard mode
// have no effect; both the mode and the per-rule record must agree.
func (c AdoptionConfig) IsRuleRelaxed(ruleID string, at time.Time) bool {
	if c.EffectiveMode(at) != AdoptionModeFirstYear {
		return false
	}
	return c.RelaxedRules[ruleID]
}
