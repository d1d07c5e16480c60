package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// HandlerKeyLinkage identifies the linkage rule family.
const HandlerKeyLinkage = "capa_linkage"

// LinkageParams parameterizes a linkage rule.
type LinkageParams struct {
	// Severity is the minimum non-conformance severity that must carry a
	// linked corrective action. Defaults to "high".
	Severity string `json:"severity"`
}

// LinkageHandler evaluates rules of the form "every high-severity
// non-conformance must have a linked corrective action". Details count the
// unlinked items.
type LinkageHandler struct {
	Data DataReader
}

func (h *LinkageHandler) Key() string { return HandlerKeyLinkage }

func (h *LinkageHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params LinkageParams
	if len(rule.Params) > 0 {
		if err := json.Unmarshal(rule.Params, &params); err != nil {
			return domain.RuleEvaluation{}, fmt.Errorf("decode linkage params: %w", err)
		}
	}
	severity := params.Severity
	if severity == "" {
		severity = "high"
	}

	unlinked, err := h.Data.CountUnlinkedNonConformances(ctx, rc.SiteIDs, severity)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("count unlinked non-conformances: %w", err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	if unlinked == 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("all %s-severity non-conformances have a linked corrective action", severity)
		return ev, nil
	}

	ev.Result = domain.RuleResultFail
	ev.Blocking = rule.Blocking
	ev.Details = fmt.Sprintf("%d %s-severity non-conformance(s) without a linked corrective action", unlinked, severity)
	ev.Recommendation = "link or raise a corrective action for each listed non-conformance"
	return ev, nil
}
