package artifact

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// =============================================================================
// HTML Renderer
// =============================================================================

// HTMLRenderer renders a human-readable pack summary.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer creates a new HTML renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("pack").Funcs(template.FuncMap{
			"title": func(s string) string {
				if s == "" {
					return s
				}
				return strings.ToUpper(s[:1]) + s[1:]
			},
			"date": func(v any) string {
				switch t := v.(type) {
				case time.Time:
					return t.Format("2 January 2006")
				case *time.Time:
					if t == nil {
						return ""
					}
					return t.Format("2 January 2006")
				}
				return ""
			},
		}).Parse(packTemplate)),
	}
}

// Format returns the output format of this renderer.
func (r *HTMLRenderer) Format() domain.ArtifactFormat {
	return domain.ArtifactFormatHTML
}

// Render writes the artifact as a standalone HTML document.
func (r *HTMLRenderer) Render(ctx context.Context, data *domain.PackArtifact, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := r.tmpl.Execute(cw, data); err != nil {
		return cw.n, fmt.Errorf("execute pack template: %w", err)
	}
	return cw.n, nil
}

const packTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{title .Pack.PackType.String}} Compliance Pack</title>
<style>
  body { font-family: Georgia, serif; margin: 2rem auto; max-width: 56rem; color: #1a202c; }
  h1 { border-bottom: 2px solid #2f855a; padding-bottom: .5rem; }
  h2 { color: #2f855a; margin-top: 2rem; }
  table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
  th, td { border: 1px solid #cbd5e0; padding: .4rem .6rem; text-align: left; vertical-align: top; }
  th { background: #f0fff4; }
  .warn { color: #975a16; }
  .pass { color: #276749; }
  blockquote { border-left: 3px solid #cbd5e0; margin: .5rem 0; padding: .25rem .75rem; font-style: italic; }
  footer { margin-top: 3rem; font-size: .85rem; color: #718096; }
</style>
</head>
<body>
<h1>{{title .Pack.PackType.String}} Compliance Pack</h1>
<p>Generated {{date .Pack.GeneratedAt}} covering {{len .Pack.SiteIDs}} site(s).
{{- if .Pack.ExpiryDate}} Valid until {{date .Pack.ExpiryDate}}.{{end}}</p>

<h2>Readiness Summary</h2>
<table>
<tr><th>Rules passed</th><td class="pass">{{len .Pack.PassedRules}}</td></tr>
<tr><th>Warnings</th><td class="warn">{{len .Pack.Warnings}}</td></tr>
<tr><th>Obligations assessed</th><td>{{.Metadata.ObligationsAssessed}} of {{.Metadata.ObligationsTotal}}</td></tr>
<tr><th>Evidence items</th><td>{{.Metadata.EvidenceItemCount}}</td></tr>
<tr><th>Current risk assessment</th><td>{{if .Metadata.HasCurrentRiskAssessment}}Yes{{else}}No{{end}}</td></tr>
</table>

{{if .Pack.Warnings}}
<h2>Warnings</h2>
<table>
<tr><th>Rule</th><th>Finding</th><th>Recommendation</th></tr>
{{range .Pack.Warnings}}
<tr><td>{{.Description}}</td><td>{{.Details}}</td><td>{{.Recommendation}}</td></tr>
{{end}}
</table>
{{end}}

{{if .PermitConditions}}
<h2>Permit Limit Conditions</h2>
<table>
<tr><th>Pollutant</th><th>Limit</th><th>Reference conditions</th><th>Source</th></tr>
{{range .PermitConditions}}
<tr>
<td>{{.Pollutant}}</td>
<td>{{.LimitValue}} {{.Unit}}</td>
<td>{{.ReferenceConditions}}</td>
<td>{{.SourceCitation}}<blockquote>{{.SourceText}}</blockquote></td>
</tr>
{{end}}
</table>
{{end}}

{{if .Trend}}
<h2>Year-over-Year Compliance</h2>
<p>Direction: <strong>{{title (printf "%s" .Trend.Direction)}}</strong>
({{.Trend.CurrentTotal}} violation points in {{.Trend.Year}} against {{.Trend.PreviousTotal}} the year before).</p>
<table>
<tr><th>Open corrective actions</th><td>{{.Trend.CorrectiveActions.Open}}</td></tr>
<tr><th>Overdue corrective actions</th><td>{{.Trend.CorrectiveActions.Overdue}}</td></tr>
</table>
{{end}}

{{if .IncidentStatistics}}
<h2>Incident Statistics</h2>
<p>Disclosed under a recorded opt-in; figures frozen as of {{date .IncidentStatistics.AsOf}}.</p>
<table>
<tr><th>Total incidents</th><td>{{.IncidentStatistics.TotalIncidents}}</td></tr>
<tr><th>Open</th><td>{{.IncidentStatistics.OpenCount}}</td></tr>
<tr><th>Reportable</th><td>{{.IncidentStatistics.ReportableCount}}</td></tr>
{{if .IncidentStatistics.HighestSeverity}}<tr><th>Highest severity</th><td>{{.IncidentStatistics.HighestSeverity}}</td></tr>{{end}}
</table>
{{end}}

<footer>Pack {{.Pack.ID}} rendered {{date .RenderedAt}}.</footer>
</body>
</html>
`
