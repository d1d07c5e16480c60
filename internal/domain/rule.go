// Package domain contains core business types and interfaces.
//
// This file defines the readiness rule catalog types and the evaluation
// results produced by the rule engine.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Rule Results
// =============================================================================

// RuleResult classifies the outcome of a single rule evaluation.
type RuleResult string

const (
	// RuleResultPass indicates the rule's requirement is satisfied.
	RuleResultPass RuleResult = "pass"

	// RuleResultFail indicates the rule's requirement is not satisfied.
	// Whether a failure blocks generation depends on the evaluation's
	// Blocking flag.
	RuleResultFail RuleResult = "fail"

	// RuleResultWarning indicates an advisory condition that never blocks
	// generation. Handler errors are also reported as warnings.
	RuleResultWarning RuleResult = "warning"

	// RuleResultInfo indicates a purely informational evaluation, counted
	// alongside passes.
	RuleResultInfo RuleResult = "info"
)

// String returns the string representation of the result.
func (r RuleResult) String() string {
	return string(r)
}

// IsValid returns true if the result is a recognized value.
func (r RuleResult) IsValid() bool {
	switch r {
	case RuleResultPass, RuleResultFail, RuleResultWarning, RuleResultInfo:
		return true
	}
	return false
}

// =============================================================================
// Rule Scope
// =============================================================================

// RuleScope indicates whether a rule evaluates site-level or company-level
// records.
type RuleScope string

const (
	RuleScopeSite    RuleScope = "site"
	RuleScopeCompany RuleScope = "company"
)

// IsValid returns true if the scope is a recognized value.
func (s RuleScope) IsValid() bool {
	return s == RuleScopeSite || s == RuleScopeCompany
}

// =============================================================================
// Rule Catalog Entry
// =============================================================================

// Rule is an externally curated readiness rule catalog entry. Rules are
// immutable configuration: the engine reads them, it never writes them.
//
// HandlerKey selects the evaluation strategy (coverage, evidence retention,
// linkage, ...) and Params carries the strategy's parameters (thresholds,
// lookback months, evidence types), so the active rule set is configuration
// rather than hard-coded logic.
type Rule struct {
	ID          string          // Stable rule identifier, e.g. "OBLIGATION_COVERAGE"
	Description string          // Human description shown in readiness results
	PackTypes   []PackType      // Pack types this rule applies to
	Blocking    bool            // Whether a FAIL blocks generation
	Scope       RuleScope       // site or company
	HandlerKey  string          // Evaluation strategy key, see rules package
	Params      json.RawMessage // Strategy parameters, decoded by the handler
	Active      bool            // Inactive rules are skipped entirely
}

// AppliesTo reports whether the rule applies to the given pack type.
func (r Rule) AppliesTo(pt PackType) bool {
	for _, t := range r.PackTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// =============================================================================
// Rule Evaluation
// =============================================================================

// RuleEvaluation is the outcome of evaluating one rule for one readiness
// request. Evaluations are recomputed on every call and never persisted as
// mutable state; the generation orchestrator snapshots them onto the pack
// record for audit.
type RuleEvaluation struct {
	RuleID         string     `json:"rule_id"`
	Description    string     `json:"description"`
	Result         RuleResult `json:"result"`
	Blocking       bool       `json:"blocking"` // effective status after relaxation; only true when Result is fail
	Details        string     `json:"details"`
	Recommendation string     `json:"recommendation,omitempty"`
}

// IsBlockingFailure reports whether this evaluation blocks pack generation.
func (e RuleEvaluation) IsBlockingFailure() bool {
	return e.Result == RuleResultFail && e.Blocking
}

// =============================================================================
// Rule Context
// =============================================================================

// RuleContext is the input handed to every rule handler. Handlers are
// independent: the context carries everything they may read, and no handler
// sees another handler's evaluation.
//
// GenerationDate is threaded explicitly instead of handlers reading the wall
// clock, so evaluation is deterministic for a fixed data-store state.
type RuleContext struct {
	CompanyID      uuid.UUID
	SiteIDs        []uuid.UUID
	AdoptionConfig AdoptionConfig
	GenerationDate time.Time
}

// LookbackStart computes the start of a historical evidence window for a rule
// with the given standard lookback. When the rule is relaxed for this company
// (first-year mode and the rule id is in the relaxed set), the window begins
// at the onboarding date instead of the fixed-duration lookback.
func (c RuleContext) LookbackStart(ruleID string, standardMonths int) time.Time {
	if c.AdoptionConfig.IsRuleRelaxed(ruleID, c.GenerationDate) {
		return c.AdoptionConfig.OnboardingDate
	}
	return c.GenerationDate.AddDate(0, -standardMonths, 0)
}
