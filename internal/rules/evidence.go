package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// HandlerKeyEvidenceRetention identifies the evidence-retention rule family.
const HandlerKeyEvidenceRetention = "evidence_retention"

// EvidenceRetentionParams parameterizes an evidence-retention rule.
type EvidenceRetentionParams struct {
	// EvidenceType names the evidence records the rule requires, e.g.
	// "mcp_run_hours" or "sampling_result".
	EvidenceType string `json:"evidence_type"`

	// LookbackMonths is the standard historical window measured back from
	// the generation date. Typical catalog values are 24, 36 or 72.
	LookbackMonths int `json:"lookback_months"`

	// DowngradeOnRelaxation additionally downgrades a failure to INFO when
	// the rule is relaxed for the company. Most retention rules keep FAIL
	// under relaxation (the shortened window is the relief); a few catalog
	// entries covering records that predate any possible onboarding use
	// this.
	DowngradeOnRelaxation bool `json:"downgrade_on_relaxation"`
}

// EvidenceRetentionHandler evaluates rules of the form "evidence of type T
// is present within the historical window". The window starts at the rule's
// standard lookback, or at the company's onboarding date when the rule is
// relaxed under first-year mode; relaxation changes the evidence window, not
// the rule's blocking classification.
type EvidenceRetentionHandler struct {
	Data DataReader
}

func (h *EvidenceRetentionHandler) Key() string { return HandlerKeyEvidenceRetention }

func (h *EvidenceRetentionHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params EvidenceRetentionParams
	if err := json.Unmarshal(rule.Params, &params); err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("decode evidence retention params: %w", err)
	}
	if params.EvidenceType == "" {
		return domain.RuleEvaluation{}, fmt.Errorf("evidence retention rule %s has no evidence_type", rule.ID)
	}

	relaxed := rc.AdoptionConfig.IsRuleRelaxed(rule.ID, rc.GenerationDate)
	windowStart := rc.LookbackStart(rule.ID, params.LookbackMonths)

	count, err := h.Data.CountEvidenceInWindow(ctx, rc.SiteIDs, params.EvidenceType, windowStart, rc.GenerationDate)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("count evidence %q: %w", params.EvidenceType, err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	window := fmt.Sprintf("window %s to %s", windowStart.Format("2006-01-02"), rc.GenerationDate.Format("2006-01-02"))
	if relaxed {
		window += " (first-year relaxation: window starts at onboarding)"
	}

	if count > 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("%d %q evidence item(s) found, %s", count, params.EvidenceType, window)
		return ev, nil
	}

	if relaxed && params.DowngradeOnRelaxation {
		ev.Result = domain.RuleResultInfo
		ev.Details = fmt.Sprintf("no %q evidence yet, %s; not required during first year", params.EvidenceType, window)
		return ev, nil
	}

	ev.Result = domain.RuleResultFail
	ev.Blocking = rule.Blocking
	ev.Details = fmt.Sprintf("no %q evidence found, %s", params.EvidenceType, window)
	ev.Recommendation = fmt.Sprintf("upload at least one %q evidence item dated within the window", params.EvidenceType)
	return ev, nil
}
