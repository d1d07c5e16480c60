package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// HandlerKeyCoverage identifies the coverage rule family.
const HandlerKeyCoverage = "coverage"

// CoverageParams parameterizes a coverage rule.
type CoverageParams struct {
	// RecordType selects what is counted: "obligations" or "conditions".
	RecordType string `json:"record_type"`

	// MinPercent is the assessed-over-total threshold. Zero means 100:
	// "all records assessed" is the common catalog entry.
	MinPercent float64 `json:"min_percent"`
}

// CoverageHandler evaluates rules of the form "at least N% of records have
// been assessed". Details always report the exact counts and how many more
// assessments are needed to cross the threshold.
type CoverageHandler struct {
	Data DataReader
}

func (h *CoverageHandler) Key() string { return HandlerKeyCoverage }

func (h *CoverageHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params CoverageParams
	if err := json.Unmarshal(rule.Params, &params); err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("decode coverage params: %w", err)
	}
	minPercent := params.MinPercent
	if minPercent == 0 {
		minPercent = 100
	}

	var total, assessed int
	var err error
	switch params.RecordType {
	case "conditions":
		total, assessed, err = h.Data.ConditionCoverage(ctx, rc.SiteIDs)
	case "obligations", "":
		total, assessed, err = h.Data.ObligationCoverage(ctx, rc.SiteIDs)
	default:
		return domain.RuleEvaluation{}, fmt.Errorf("unknown coverage record type %q", params.RecordType)
	}
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("read coverage counts: %w", err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	if total == 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = "no applicable records in scope"
		return ev, nil
	}

	percent := float64(assessed) / float64(total) * 100
	if percent >= minPercent {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("%d of %d records assessed (%.1f%%, threshold %.1f%%)", assessed, total, percent, minPercent)
		return ev, nil
	}

	// Smallest number of additional assessments that crosses the threshold.
	needed := int(math.Ceil(minPercent/100*float64(total))) - assessed

	ev.Result = domain.RuleResultFail
	ev.Blocking = rule.Blocking
	ev.Details = fmt.Sprintf("%d of %d records assessed (%.1f%%, threshold %.1f%%)", assessed, total, percent, minPercent)
	ev.Recommendation = fmt.Sprintf("assess %d more record(s) to reach the %.1f%% threshold", needed, minPercent)
	return ev, nil
}
