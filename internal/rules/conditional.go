package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// HandlerKeyConditionalEvidence identifies the conditional-applicability
// rule family.
const HandlerKeyConditionalEvidence = "conditional_evidence"

// ConditionalEvidenceParams parameterizes a conditional-applicability rule.
type ConditionalEvidenceParams struct {
	// DocumentType is the document family whose presence triggers the rule,
	// e.g. "permit".
	DocumentType string `json:"document_type"`

	// IssuedAfter qualifies documents by issue date; only documents issued
	// strictly after this date trigger the requirement. Zero means every
	// document of the type qualifies.
	IssuedAfter time.Time `json:"issued_after"`

	// EvidenceMarker is the marker the qualifying documents demand, e.g.
	// "climate_adaptation_plan".
	EvidenceMarker string `json:"evidence_marker"`
}

// ConditionalEvidenceHandler evaluates rules that apply only when a
// qualifying document exists, e.g. "a climate adaptation plan is required
// for permits issued after the cutoff". With no qualifying document the rule
// passes trivially.
type ConditionalEvidenceHandler struct {
	Data DataReader
}

func (h *ConditionalEvidenceHandler) Key() string { return HandlerKeyConditionalEvidence }

func (h *ConditionalEvidenceHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params ConditionalEvidenceParams
	if err := json.Unmarshal(rule.Params, &params); err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("decode conditional evidence params: %w", err)
	}
	if params.EvidenceMarker == "" {
		return domain.RuleEvaluation{}, fmt.Errorf("conditional evidence rule %s has no evidence_marker", rule.ID)
	}

	docType := params.DocumentType
	if docType == "" {
		docType = "permit"
	}

	docs, err := h.Data.ListDocumentsByType(ctx, rc.SiteIDs, docType)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("list %s documents: %w", docType, err)
	}

	qualifying := 0
	for _, d := range docs {
		if params.IssuedAfter.IsZero() || d.IssuedDate.After(params.IssuedAfter) {
			qualifying++
		}
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	if qualifying == 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("no %s issued after %s in scope; requirement does not apply", docType, params.IssuedAfter.Format("2006-01-02"))
		return ev, nil
	}

	found, err := h.Data.HasEvidenceMarker(ctx, rc.SiteIDs, params.EvidenceMarker)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("check evidence marker %q: %w", params.EvidenceMarker, err)
	}

	if found {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("%d qualifying %s(s); %q evidence present", qualifying, docType, params.EvidenceMarker)
		return ev, nil
	}

	ev.Result = domain.RuleResultFail
	ev.Blocking = rule.Blocking
	ev.Details = fmt.Sprintf("%d qualifying %s(s) but no %q evidence recorded", qualifying, docType, params.EvidenceMarker)
	ev.Recommendation = fmt.Sprintf("record %q evidence for the qualifying %s(s)", params.EvidenceMarker, docType)
	return ev, nil
}
