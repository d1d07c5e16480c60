package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// HandlerKeyDocumentStatus identifies the document-status rule family.
const HandlerKeyDocumentStatus = "document_status"

// DocumentStatusParams parameterizes a document-status rule.
type DocumentStatusParams struct {
	// DocumentType is the document family the rule inspects. Defaults to
	// "permit".
	DocumentType string `json:"document_type"`
}

// DocumentStatusHandler evaluates rules of the form "no permit in scope may
// be in a non-active state".
type DocumentStatusHandler struct {
	Data DataReader
}

func (h *DocumentStatusHandler) Key() string { return HandlerKeyDocumentStatus }

func (h *DocumentStatusHandler) Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error) {
	var params DocumentStatusParams
	if len(rule.Params) > 0 {
		if err := json.Unmarshal(rule.Params, &params); err != nil {
			return domain.RuleEvaluation{}, fmt.Errorf("decode document status params: %w", err)
		}
	}
	docType := params.DocumentType
	if docType == "" {
		docType = "permit"
	}

	docs, err := h.Data.ListDocumentsByType(ctx, rc.SiteIDs, docType)
	if err != nil {
		return domain.RuleEvaluation{}, fmt.Errorf("list %s documents: %w", docType, err)
	}

	ev := domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
	}

	var inactive []string
	for _, d := range docs {
		if !d.Status.IsActive() {
			inactive = append(inactive, fmt.Sprintf("%s (%s)", d.Reference, d.Status))
		}
	}

	if len(inactive) == 0 {
		ev.Result = domain.RuleResultPass
		ev.Details = fmt.Sprintf("all %d %s(s) in scope are active", len(docs), docType)
		return ev, nil
	}

	ev.Result = domain.RuleResultFail
	ev.Blocking = rule.Blocking
	ev.Details = fmt.Sprintf("%d non-active %s(s): %s", len(inactive), docType, strings.Join(inactive, ", "))
	ev.Recommendation = fmt.Sprintf("resolve the status of each non-active %s before generating", docType)
	return ev, nil
}
