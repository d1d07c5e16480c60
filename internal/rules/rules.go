// Package rules contains the readiness rule handler registry and the
// handler families the rule catalog can be configured with.
//
// A rule catalog entry names a handler key and carries JSON parameters; the
// registry maps the key to a Handler. Handlers are referentially transparent
// with respect to their inputs: the same rule, context, and data-store state
// always produce the same evaluation. Handlers never see each other's
// results and their evaluation order is irrelevant to the final decision.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/google/uuid"
)

// Handler evaluates one rule against a readiness context.
//
// A returned error means the handler could not produce an evaluation at all
// (usually a data read failure); the aggregator converts it into a
// non-blocking warning so one broken rule never aborts the others and never
// silently counts as a pass.
type Handler interface {
	// Key returns the handler key rule catalog entries reference.
	Key() string

	// Evaluate produces the evaluation for the given rule and context.
	Evaluate(ctx context.Context, rule domain.Rule, rc domain.RuleContext) (domain.RuleEvaluation, error)
}

// DataReader is the narrow read-only view of the compliance data store that
// rule handlers evaluate against. All reads are scoped by site ids; timeout
// policy for these reads belongs to the data-access layer, not the handlers.
type DataReader interface {
	// ObligationCoverage returns total and assessed obligation counts for
	// the sites.
	ObligationCoverage(ctx context.Context, siteIDs []uuid.UUID) (total, assessed int, err error)

	// ConditionCoverage returns total and assessed permit condition counts
	// for the sites.
	ConditionCoverage(ctx context.Context, siteIDs []uuid.UUID) (total, assessed int, err error)

	// CountEvidenceInWindow counts evidence items of the given type dated
	// within [from, to].
	CountEvidenceInWindow(ctx context.Context, siteIDs []uuid.UUID, evidenceType string, from, to time.Time) (int, error)

	// ListDocumentsByType returns the sites' documents of the given type.
	ListDocumentsByType(ctx context.Context, siteIDs []uuid.UUID, documentType string) ([]domain.Document, error)

	// HasEvidenceMarker reports whether any evidence item carrying the given
	// marker exists for the sites.
	HasEvidenceMarker(ctx context.Context, siteIDs []uuid.UUID, marker string) (bool, error)

	// CountUnlinkedNonConformances counts non-conformances at or above the
	// given severity with no linked corrective action.
	CountUnlinkedNonConformances(ctx context.Context, siteIDs []uuid.UUID, severity string) (int, error)

	// CountNonConformancesByCategoryInYear counts non-conformances of the
	// given risk category dated within the calendar year.
	CountNonConformancesByCategoryInYear(ctx context.Context, siteIDs []uuid.UUID, category int, year int) (int, error)

	// EarliestEvidenceDate returns the date of the oldest evidence item for
	// the sites, or nil when none exist.
	EarliestEvidenceDate(ctx context.Context, siteIDs []uuid.UUID) (*time.Time, error)
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps handler keys to handlers. Unrecognized keys resolve to a
// default handler that evaluates to a non-blocking warning naming the key,
// so a catalog/typo mismatch is visible in every readiness response rather
// than silently passing.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry creates a registry with every built-in handler family
// registered against the given data reader.
func NewDefaultRegistry(data DataReader) *Registry {
	r := NewRegistry()
	r.Register(&CoverageHandler{Data: data})
	r.Register(&EvidenceRetentionHandler{Data: data})
	r.Register(&ConditionalEvidenceHandler{Data: data})
	r.Register(&LinkageHandler{Data: data})
	r.Register(&DocumentStatusHandler{Data: data})
	r.Register(&HistoryAdvisoryHandler{Data: data})
	r.Register(&SeverityThresholdHandler{Data: data})
	return r
}

// Register adds a handler to the registry, replacing any handler already
// registered under the same key.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Key()] = h
}

// Lookup returns the handler for the given key, or the default handler when
// the key is unrecognized.
func (r *Registry) Lookup(key string) Handler {
	if h, ok := r.handlers[key]; ok {
		return h
	}
	return unknownHandler{key: key}
}

// Keys returns the registered handler keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// unknownHandler is the explicit default for unrecognized handler keys.
type unknownHandler struct {
	key string
}

func (h unknownHandler) Key() string { return h.key }

func (h unknownHandler) Evaluate(_ context.Context, rule domain.Rule, _ domain.RuleContext) (domain.RuleEvaluation, error) {
	return domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
		Result:      domain.RuleResultWarning,
		Blocking:    false,
		Details:     fmt.Sprintf("no handler registered for key %q; rule was not evaluated", h.key),
	}, nil
}
