package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/ecocomply/internal/domain"
)

func sampleArtifact() *domain.PackArtifact {
	expiry := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	return &domain.PackArtifact{
		Pack: domain.Pack{
			ID:        uuid.New(),
			CompanyID: uuid.New(),
			PackType:  domain.PackTypeRegulator,
			SiteIDs:   []uuid.UUID{uuid.New()},
			Status:    domain.PackStatusGenerating,
			PassedRules: []domain.RuleEvaluation{
				{RuleID: "OBLIGATION_COVERAGE", Result: domain.RuleResultPass, Details: "10 of 10 records assessed"},
			},
			Warnings: []domain.RuleEvaluation{
				{RuleID: "COMPLIANCE_HISTORY_DEPTH", Result: domain.RuleResultWarning, Details: "history starts 2024-06-15"},
			},
			GeneratedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
			ExpiryDate:  &expiry,
		},
		Metadata: domain.PackMetadata{
			ObligationsTotal:         10,
			ObligationsAssessed:      10,
			EvidenceItemCount:        42,
			HasCurrentRiskAssessment: true,
		},
		PermitConditions: []domain.PermitCondition{
			{
				ID:                  uuid.New(),
				Pollutant:           "NOx",
				LimitValue:          10,
				Unit:                "mg/m3",
				ReferenceConditions: "273K, 101.3kPa, dry gas",
				SourceText:          "Emissions of oxides of nitrogen shall not exceed 10 mg/m3.",
				SourceCitation:      "Permit EPR/AB1234CD, Table S3.1",
			},
		},
		RenderedAt: time.Date(2025, 6, 15, 10, 5, 0, 0, time.UTC),
	}
}

func TestForFormat(t *testing.T) {
	jr, err := ForFormat(domain.ArtifactFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactFormatJSON, jr.Format())

	hr, err := ForFormat(domain.ArtifactFormatHTML)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactFormatHTML, hr.Format())

	_, err = ForFormat(domain.ArtifactFormat("pdf"))
	assert.Error(t, err)
}

func TestJSONRenderer_Render(t *testing.T) {
	data := sampleArtifact()
	r := NewJSONRenderer()

	var buf bytes.Buffer
	n, err := r.Render(context.Background(), data, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	var decoded domain.PackArtifact
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, data.Pack.ID, decoded.Pack.ID)
	assert.Equal(t, data.Metadata, decoded.Metadata)
	require.Len(t, decoded.PermitConditions, 1)
	assert.Equal(t, "NOx", decoded.PermitConditions[0].Pollutant)

	// Optional sections are omitted, not nulled.
	assert.NotContains(t, buf.String(), `"trend"`)
	assert.NotContains(t, buf.String(), `"incident_statistics"`)
}

func TestJSONRenderer_Render_Stable(t *testing.T) {
	data := sampleArtifact()
	r := NewJSONRenderer()

	var first, second bytes.Buffer
	_, err := r.Render(context.Background(), data, &first)
	require.NoError(t, err)
	_, err = r.Render(context.Background(), data, &second)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
}

func TestHTMLRenderer_Render(t *testing.T) {
	data := sampleArtifact()
	r := NewHTMLRenderer()

	var buf bytes.Buffer
	n, err := r.Render(context.Background(), data, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	html := buf.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "Regulator Compliance Pack")
	assert.Contains(t, html, "shall not exceed 10 mg/m3")
	assert.Contains(t, html, "Permit EPR/AB1234CD, Table S3.1")
	assert.Contains(t, html, "Valid until 15 July 2025")
	assert.Contains(t, html, data.Pack.ID.String())
}

func TestHTMLRenderer_Render_OptionalSections(t *testing.T) {
	t.Run("board trend section", func(t *testing.T) {
		data := sampleArtifact()
		data.Pack.PackType = domain.PackTypeBoard
		data.PermitConditions = nil
		data.Trend = &domain.ComplianceTrend{
			Year:          2025,
			Direction:     domain.TrendImproving,
			CurrentTotal:  4,
			PreviousTotal: 12,
		}

		var buf bytes.Buffer
		_, err := NewHTMLRenderer().Render(context.Background(), data, &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Year-over-Year Compliance")
		assert.Contains(t, buf.String(), "Improving")
	})

	t.Run("tender incident section", func(t *testing.T) {
		data := sampleArtifact()
		data.Pack.PackType = domain.PackTypeTender
		data.PermitConditions = nil
		data.IncidentStatistics = &domain.IncidentStatistics{
			AsOf:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			TotalIncidents: 3,
		}

		var buf bytes.Buffer
		_, err := NewHTMLRenderer().Render(context.Background(), data, &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Incident Statistics")
		assert.Contains(t, buf.String(), "1 June 2025")
	})

	t.Run("no expiry date renders without a validity line", func(t *testing.T) {
		data := sampleArtifact()
		data.Pack.ExpiryDate = nil

		var buf bytes.Buffer
		_, err := NewHTMLRenderer().Render(context.Background(), data, &buf)
		require.NoError(t, err)
		assert.NotContains(t, buf.String(), "Valid until")
	})

	t.Run("rule details are escaped", func(t *testing.T) {
		data := sampleArtifact()
		data.Pack.Warnings[0].Details = `<script>alert("x")</script>`

		var buf bytes.Buffer
		_, err := NewHTMLRenderer().Render(context.Background(), data, &buf)
		require.NoError(t, err)
		assert.NotContains(t, buf.String(), "<script>")
	})
}
