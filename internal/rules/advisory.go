package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// Handler keys for the advisory rule families. Advisory rules never block:
// they emit INFO or WARNING regardless of the catalog's blocking flag.
const (
	HandlerKeyHistoryAdvisory   = "history_advisory"
	HandlerKeySeverityThreshold = "severity_threshold"
)

// HistoryAdvisoryParams parameterizes a history-advisory rule.
type HistoryAdvisoryParams struct {
	// MinYears is how many years of evidence history a credible trend
	// needs. Defaults to 2.
	MinYears int `json:"min_years"`
}

// HistoryAdvisoryHandler evaluates trend/advisory rules about the depth of
// the evidence history. First-year companies get INFO (not enough history is
// expected); established companies with a short window get WARNING.
type HistoryAdvisoryHandler struct {
	Data DataReader
}

func (h *HistoryAdvisoryHandler) Key() string { return HandlerKeyHistoryAdvisory }

func (h *HistoryAdvisoryHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params HistoryAdvisoryParams
	if len(rule.Params) > 0 {
		if err := json.Unmarshal(rule.Params, &params); err != nil {
			return domain.RuleEvaluation{}, fmt.Errorf("decode history advisory params: %w", err)
		}
	}
	minYears := params.MinYears
	if minYears == 0 {
		minYears = 2
	}

	earliest, err := h.Data.EarliestEvidenceDate(ctx, rc.SiteIDs)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("read earliest evidence date: %w", err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	firstYear := rc.AdoptionConfig.EffectiveMode(rc.GenerationDate) == domain.AdoptionModeFirstYear

	if earliest == nil {
		if firstYear {
			ev.Result = domain.RuleResultInfo
			ev.Details = "no evidence history yet; company is in its first year"
		} else {
			ev.Result = domain.RuleResultWarning
			ev.Details = "no evidence history found; trend analysis is not possible"
		}
		return ev, nil
	}

	required := rc.GenerationDate.AddDate(-minYears, 0, 0)
	if earliest.After(required) {
		if firstYear {
			ev.Result = domain.RuleResultInfo
			ev.Details = fmt.Sprintf("evidence history starts %s; trend analysis will become available after the first year", earliest.Format("2006-01-02"))
		} else {
			ev.Result = domain.RuleResultWarning
			ev.Details = fmt.Sprintf("evidence history starts %s, less than the %d year(s) a reliable trend needs", earliest.Format("2006-01-02"), minYears)
		}
		return ev, nil
	}

	ev.Result = domain.RuleResultPass
	ev.Details = fmt.Sprintf("evidence history since %s covers the %d-year trend window", earliest.Format("2006-01-02"), minYears)
	return ev, nil
}

// SeverityThresholdParams parameterizes a severity-threshold rule.
type SeverityThresholdParams struct {
	// Category is the non-conformance risk category counted. Defaults to 1
	// (most severe).
	Category int `json:"category"`
}

// SeverityThresholdHandler evaluates rules like "no category-1
// non-compliance in the generation year". Violations are serious but the
// family is not eligible to block: the result is WARNING, never FAIL.
type SeverityThresholdHandler struct {
	Data DataReader
}

func (h *SeverityThresholdHandler) Key() string { return HandlerKeySeverityThreshold }

func (h *SeverityThresholdHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params SeverityThresholdParams
	if len(rule.Params) > 0 {
		if err := json.Unmarshal(rule.Params, &params); err != nil {
			return domain.RuleEvaluation{}, fmt.Errorf("decode severity threshold params: %w", err)
		}
	}
	category := params.Category
	if category == 0 {
		category = 1
	}

	year := rc.GenerationDate.Year()
	count, err := h.Data.CountNonConformancesByCategoryInYear(ctx, rc.SiteIDs, category, year)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("count category-%d non-conformances: %w", category, err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	if count == 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("no category-%d non-conformance recorded in %d", category, year)
		return ev, nil
	}

	ev.Result = domain.RuleResultWarning
	ev.Details = fmt.Sprintf("%d category-%d non-conformance(s) recorded in %d", count, category, year)
	ev.Recommendation = "review the listed non-conformances with the compliance lead before distributing the pack"
	return ev, nil
}
