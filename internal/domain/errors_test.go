package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"domain error", Invalid("op", "bad input"), EINVALID},
		{"wrapped domain error", fmt.Errorf("context: %w", NotFound("op", "pack", "abc")), ENOTFOUND},
		{"blocked error", &BlockedError{Op: "generation.generate"}, EBLOCKED},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Run("internal errors never leak detail", func(t *testing.T) {
		err := Internal(errors.New("pq: connection refused"), "packs.get", "query failed")
		msg := ErrorMessage(err)
		assert.NotContains(t, msg, "connection refused")
		assert.NotContains(t, msg, "query failed")
	})

	t.Run("validation message is returned verbatim", func(t *testing.T) {
		err := Invalid("packs.generate", "at least one site id is required")
		assert.Equal(t, "at least one site id is required", ErrorMessage(err))
	})

	t.Run("plain error gets the generic message", func(t *testing.T) {
		msg := ErrorMessage(errors.New("boom"))
		assert.NotContains(t, msg, "boom")
	})
}

func TestBlockedError(t *testing.T) {
	err := &BlockedError{
		Op: "generation.generate",
		Failures: []RuleEvaluation{
			{RuleID: "OBLIGATION_COVERAGE", Result: RuleResultFail, Blocking: true},
			{RuleID: "PERMIT_ACTIVE_STATUS", Result: RuleResultFail, Blocking: true},
		},
	}

	assert.Equal(t, []string{"OBLIGATION_COVERAGE", "PERMIT_ACTIVE_STATUS"}, err.BlockedRuleIDs())
	assert.Contains(t, err.Error(), "blocked by 2 rule(s)")
	assert.Contains(t, err.Error(), "OBLIGATION_COVERAGE")

	// errors.As finds it through wrapping.
	wrapped := fmt.Errorf("request failed: %w", err)
	var be *BlockedError
	assert.True(t, errors.As(wrapped, &be))
	assert.Equal(t, EBLOCKED, ErrorCode(wrapped))
}

func TestUnitMismatch(t *testing.T) {
	err := UnitMismatch("elv.check", "g/m3", "mg/m3")
	assert.Equal(t, EUNITMATCH, ErrorCode(err))
	assert.Contains(t, err.Message, "g/m3")
	assert.Contains(t, err.Message, "mg/m3")
}
