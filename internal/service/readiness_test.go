package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/rules"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeAdoptionResolver struct {
	config domain.AdoptionConfig
	err    error
}

func (f *fakeAdoptionResolver) Resolve(_ context.Context, _ uuid.UUID) (domain.AdoptionConfig, error) {
	return f.config, f.err
}

type fakeRuleCatalog struct {
	rules []domain.Rule
	err   error
}

func (f *fakeRuleCatalog) ListActiveRulesByPackType(_ context.Context, _ domain.PackType) ([]domain.Rule, error) {
	return f.rules, f.err
}

type fakeMetadataStore struct {
	total    int
	assessed int
	evidence int
	hasRA    bool
	err      error
}

func (f *fakeMetadataStore) ObligationCoverage(_ context.Context, _ []uuid.UUID) (int, int, error) {
	return f.total, f.assessed, f.err
}

func (f *fakeMetadataStore) CountEvidenceItems(_ context.Context, _ []uuid.UUID) (int, error) {
	return f.evidence, f.err
}

func (f *fakeMetadataStore) HasRiskAssessmentForYear(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	return f.hasRA, f.err
}

// stubHandler returns a fixed evaluation or error for every rule it sees.
type stubHandler struct {
	key    string
	result domain.RuleResult
	err    error
	panics bool
}

func (h *stubHandler) Key() string { return h.key }

func (h *stubHandler) Evaluate(_ context.Context, rule domain.Rule, _ domain.RuleContext) (domain.RuleEvaluation, error) {
	if h.panics {
		panic("handler exploded")
	}
	if h.err != nil {
		return domain.RuleEvaluation{}, h.err
	}
	return domain.RuleEvaluation{
		RuleID:      rule.ID,
		Description: rule.Description,
		Result:      h.result,
		Blocking:    rule.Blocking && h.result == domain.RuleResultFail,
	}, nil
}

func newTestReadinessService(catalog []domain.Rule, handlers ...rules.Handler) *readinessService {
	registry := rules.NewRegistry()
	for _, h := range handlers {
		registry.Register(h)
	}
	svc := NewReadinessService(
		&fakeAdoptionResolver{config: domain.AdoptionConfig{Mode: domain.AdoptionModeStandard}},
		&fakeRuleCatalog{rules: catalog},
		&fakeMetadataStore{total: 10, assessed: 10, evidence: 5, hasRA: true},
		registry,
		slog.New(slog.NewTextHandler(os.Stderr, nil)),
	).(*readinessService)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return svc
}

func validRequest() domain.PackGenerationRequest {
	return domain.PackGenerationRequest{
		CompanyID: uuid.New(),
		SiteIDs:   []uuid.UUID{uuid.New()},
		PackType:  domain.PackTypeRegulator,
	}
}

func catalogRule(id, key string, blocking bool) domain.Rule {
	return domain.Rule{
		ID:          id,
		Description: id,
		PackTypes:   []domain.PackType{domain.PackTypeRegulator},
		Blocking:    blocking,
		HandlerKey:  key,
		Active:      true,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestReadinessService_EvaluateReadiness_Partitioning(t *testing.T) {
	catalog := []domain.Rule{
		catalogRule("RULE_PASS", "always_pass", true),
		catalogRule("RULE_FAIL_BLOCKING", "always_fail", true),
		catalogRule("RULE_FAIL_ADVISORY", "always_fail", false),
		catalogRule("RULE_WARN", "always_warn", true),
		catalogRule("RULE_INFO", "always_info", false),
	}
	svc := newTestReadinessService(catalog,
		&stubHandler{key: "always_pass", result: domain.RuleResultPass},
		&stubHandler{key: "always_fail", result: domain.RuleResultFail},
		&stubHandler{key: "always_warn", result: domain.RuleResultWarning},
		&stubHandler{key: "always_info", result: domain.RuleResultInfo},
	)

	result, err := svc.EvaluateReadiness(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, result.CanGenerate)
	require.Len(t, result.BlockingFailures, 1)
	assert.Equal(t, "RULE_FAIL_BLOCKING", result.BlockingFailures[0].RuleID)

	// Non-blocking failures and warnings land together.
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "RULE_FAIL_ADVISORY", result.Warnings[0].RuleID)
	assert.Equal(t, "RULE_WARN", result.Warnings[1].RuleID)

	// Info counts alongside passes.
	require.Len(t, result.PassedRules, 2)
	assert.NotEqual(t, uuid.Nil, result.PackID)
}

func TestReadinessService_EvaluateReadiness_CanGenerateInvariant(t *testing.T) {
	t.Run("only warnings still generates", func(t *testing.T) {
		catalog := []domain.Rule{
			catalogRule("RULE_WARN", "always_warn", true),
			catalogRule("RULE_PASS", "always_pass", true),
		}
		svc := newTestReadinessService(catalog,
			&stubHandler{key: "always_warn", result: domain.RuleResultWarning},
			&stubHandler{key: "always_pass", result: domain.RuleResultPass},
		)

		result, err := svc.EvaluateReadiness(context.Background(), validRequest())
		require.NoError(t, err)
		assert.True(t, result.CanGenerate)
		assert.Empty(t, result.BlockingFailures)
	})

	t.Run("empty catalog generates", func(t *testing.T) {
		svc := newTestReadinessService(nil)

		result, err := svc.EvaluateReadiness(context.Background(), validRequest())
		require.NoError(t, err)
		assert.True(t, result.CanGenerate)
	})
}

func TestReadinessService_EvaluateReadiness_HandlerError(t *testing.T) {
	// A handler that cannot evaluate becomes a warning, never a blocking
	// failure and never an aborted evaluation.
	catalog := []domain.Rule{
		catalogRule("RULE_BROKEN", "always_error", true),
		catalogRule("RULE_PASS", "always_pass", true),
	}
	svc := newTestReadinessService(catalog,
		&stubHandler{key: "always_error", err: errors.New("data read failed")},
		&stubHandler{key: "always_pass", result: domain.RuleResultPass},
	)

	result, err := svc.EvaluateReadiness(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.CanGenerate)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "RULE_BROKEN", result.Warnings[0].RuleID)
	assert.Contains(t, result.Warnings[0].Details, "could not be evaluated")
	assert.Len(t, result.PassedRules, 1)
}

func TestReadinessService_EvaluateReadiness_HandlerPanic(t *testing.T) {
	catalog := []domain.Rule{
		catalogRule("RULE_PANICS", "always_panic", true),
		catalogRule("RULE_PASS", "always_pass", true),
	}
	svc := newTestReadinessService(catalog,
		&stubHandler{key: "always_panic", panics: true},
		&stubHandler{key: "always_pass", result: domain.RuleResultPass},
	)

	result, err := svc.EvaluateReadiness(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.CanGenerate)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "RULE_PANICS", result.Warnings[0].RuleID)
	assert.Contains(t, result.Warnings[0].Details, "panicked")
}

func TestReadinessService_EvaluateReadiness_UnknownHandlerKey(t *testing.T) {
	catalog := []domain.Rule{catalogRule("RULE_TYPO", "no_such_handler", true)}
	svc := newTestReadinessService(catalog)

	result, err := svc.EvaluateReadiness(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.CanGenerate)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Details, "no_such_handler")
}

func TestReadinessService_EvaluateReadiness_Metadata(t *testing.T) {
	t.Run("metadata is attached", func(t *testing.T) {
		svc := newTestReadinessService(nil)

		result, err := svc.EvaluateReadiness(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, 10, result.Metadata.ObligationsTotal)
		assert.Equal(t, 10, result.Metadata.ObligationsAssessed)
		assert.Equal(t, 5, result.Metadata.EvidenceItemCount)
		assert.True(t, result.Metadata.HasCurrentRiskAssessment)
	})

	t.Run("metadata read failure never gates the decision", func(t *testing.T) {
		svc := newTestReadinessService(nil)
		svc.metadata = &fakeMetadataStore{err: errors.New("db down")}

		result, err := svc.EvaluateReadiness(context.Background(), validRequest())
		require.NoError(t, err)
		assert.True(t, result.CanGenerate)
		assert.Zero(t, result.Metadata)
	})
}

func TestReadinessService_EvaluateReadiness_Validation(t *testing.T) {
	svc := newTestReadinessService(nil)

	_, err := svc.EvaluateReadiness(context.Background(), domain.PackGenerationRequest{
		CompanyID: uuid.New(),
		PackType:  domain.PackTypeRegulator,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReadinessService_EvaluateReadiness_CatalogError(t *testing.T) {
	svc := newTestReadinessService(nil)
	svc.catalog = &fakeRuleCatalog{err: errors.New("db down")}

	_, err := svc.EvaluateReadiness(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}
