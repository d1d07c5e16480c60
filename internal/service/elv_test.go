package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/ecocomply/internal/domain"
)

type fakePermitConditionStore struct {
	condition *domain.PermitCondition
	err       error
}

func (f *fakePermitConditionStore) GetPermitCondition(_ context.Context, id uuid.UUID) (*domain.PermitCondition, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.condition == nil || f.condition.ID != id {
		return nil, domain.NotFound("compliance.permit_condition", "permit condition", id.String())
	}
	return f.condition, nil
}

func testCondition() *domain.PermitCondition {
	return &domain.PermitCondition{
		ID:                  uuid.New(),
		DocumentID:          uuid.New(),
		Pollutant:           "NOx",
		LimitValue:          10,
		Unit:                "mg/m3",
		ReferenceConditions: "273K, 101.3kPa, dry gas, 3% O2",
		SourceText:          "Emissions of oxides of nitrogen shall not exceed 10 mg/m3.",
		SourceCitation:      "Permit EPR/AB1234CD, Table S3.1, condition 2.4",
	}
}

func newTestElvService(store PermitConditionStore) *elvService {
	svc := NewElvService(store, slog.New(slog.NewTextHandler(os.Stderr, nil))).(*elvService)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestElvService_CheckCompliance_Compliant(t *testing.T) {
	cond := testCondition()
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	result, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
		ConditionID:   cond.ID,
		MeasuredValue: 9.5,
		MeasuredUnit:  "mg/m3",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ElvCompliant, result.Status)
	assert.InDelta(t, 0.5, result.Headroom, 1e-9)
	assert.InDelta(t, 5.0, result.HeadroomPercentage, 1e-9)
	assert.Zero(t, result.Exceedance)

	// Permit provenance is always echoed back.
	assert.Equal(t, cond.SourceText, result.VerbatimPermitText)
	assert.Equal(t, cond.SourceCitation, result.LimitSource)
	assert.Equal(t, cond.LimitValue, result.LimitValue)
	assert.Equal(t, cond.Unit, result.LimitUnit)
}

func TestElvService_CheckCompliance_ExactlyAtLimit(t *testing.T) {
	// Permits say "shall not exceed", so measured == limit is compliant.
	cond := testCondition()
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	result, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
		ConditionID:   cond.ID,
		MeasuredValue: 10,
		MeasuredUnit:  "mg/m3",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ElvCompliant, result.Status)
	assert.Zero(t, result.Headroom)
	assert.Zero(t, result.HeadroomPercentage)
}

func TestElvService_CheckCompliance_NonCompliant(t *testing.T) {
	cond := testCondition()
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	result, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
		ConditionID:   cond.ID,
		MeasuredValue: 10.5,
		MeasuredUnit:  "mg/m3",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ElvNonCompliant, result.Status)
	assert.InDelta(t, 0.5, result.Exceedance, 1e-9)
	assert.Zero(t, result.Headroom)
}

func TestElvService_CheckCompliance_UnitMismatch(t *testing.T) {
	cond := testCondition()
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	tests := []struct {
		name    string
		unit    string
		wantErr bool
	}{
		{"different unit", "g/m3", true},
		// No conversion heuristics: normalised vs actual volume stay distinct.
		{"normalised cubic metres", "mg/Nm3", true},
		{"case difference accepted", "MG/M3", false},
		{"surrounding whitespace accepted", " mg/m3 ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
				ConditionID:   cond.ID,
				MeasuredValue: 5,
				MeasuredUnit:  tt.unit,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.EUNITMATCH, domain.ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestElvService_CheckCompliance_ReferenceConditions(t *testing.T) {
	cond := testCondition()
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	tests := []struct {
		name     string
		measured string
		wantErr  bool
	}{
		{"matching conditions", "273K, 101.3kPa, dry gas, 3% O2", false},
		{"case-insensitive match", "273k, 101.3kpa, dry gas, 3% o2", false},
		{"differing conditions", "293K, 101.3kPa, wet gas", true},
		// The measurement may omit conditions; the permit's stand alone.
		{"measurement omits conditions", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
				ConditionID:         cond.ID,
				MeasuredValue:       5,
				MeasuredUnit:        "mg/m3",
				ReferenceConditions: tt.measured,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.EREFMATCH, domain.ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestElvService_CheckCompliance_PermitRecordsNoReferenceConditions(t *testing.T) {
	// A measurement declaring reference conditions the permit never
	// recorded cannot be silently accepted as compliant.
	cond := testCondition()
	cond.ReferenceConditions = ""
	svc := newTestElvService(&fakePermitConditionStore{condition: cond})

	_, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
		ConditionID:         cond.ID,
		MeasuredValue:       5,
		MeasuredUnit:        "mg/m3",
		ReferenceConditions: "273K, 101.3kPa, dry gas, 3% O2",
	})

	require.Error(t, err)
	assert.Equal(t, domain.EREFMATCH, domain.ErrorCode(err))
}

func TestElvService_CheckCompliance_ConditionNotFound(t *testing.T) {
	svc := newTestElvService(&fakePermitConditionStore{})

	_, err := svc.CheckCompliance(context.Background(), ElvCheckInput{
		ConditionID:   uuid.New(),
		MeasuredValue: 5,
		MeasuredUnit:  "mg/m3",
	})

	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
