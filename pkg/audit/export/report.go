package export

import (
	"html/template"
	"io"
	"sort"
	"strconv"
	"time"

	"clinical-guardrails/guardrails/pkg/audit"
)

// RuleCount is one row of the rule violation table.
type RuleCount struct {
	RuleID string
	Count  int64
}

// Report is the data rendered into the attestation report.
type Report struct {
	Title          string
	GeneratedAt    time.Time
	TotalRuns      int64
	Failed         int64
	ComplianceRate float64
	Rules          []RuleCount
	Recent         []*audit.TraceRecord
}

// NewReport builds report data from stats and the most recent traces.
// Rules are ordered by descending count, then rule id.
func NewReport(stats *audit.Stats, recent []*audit.TraceRecord, generatedAt time.Time) *Report {
	if stats == nil {
		stats = &audit.Stats{}
	}

	rules := make([]RuleCount, 0, len(stats.RuleCounts))
	for id, n := range stats.RuleCounts {
		rules = append(rules, RuleCount{RuleID: id, Count: n})
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Count != rules[j].Count {
			return rules[i].Count > rules[j].Count
		}
		return rules[i].RuleID < rules[j].RuleID
	})

	return &Report{
		Title:          "QA Attestation: Clinical Guardrails",
		GeneratedAt:    generatedAt.UTC(),
		TotalRuns:      stats.TotalRuns,
		Failed:         stats.FailedCompliance,
		ComplianceRate: stats.ComplianceRate(),
		Rules:          rules,
		Recent:         recent,
	}
}

// WriteHTML renders the report.
func (r *Report) WriteHTML(w io.Writer) error {
	if err := reportTemplate.Execute(w, r); err != nil {
		return audit.NewExportError("html", len(r.Recent), err)
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct":  formatPercent,
	"time": func(t time.Time) string { return t.Format(time.RFC3339) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; line-height: 1.6; max-width: 800px; margin: 40px auto; padding: 20px; }
.summary { background: #f4f4f4; padding: 20px; border-radius: 8px; }
.alert-card { border-left: 5px solid red; background: #fff5f5; padding: 10px; margin: 10px 0; }
.success-card { border-left: 5px solid green; background: #f5fff5; padding: 10px; margin: 10px 0; }
h2 { color: #2c3e50; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="summary">
<h2>Executive Summary</h2>
<p><strong>Total Scenarios Verified:</strong> {{.TotalRuns}}</p>
<p><strong>Compliance Failures Detected:</strong> {{.Failed}}</p>
<p><strong>Compliance Rate:</strong> {{pct .ComplianceRate}}</p>
</div>
<h2>Rule Violation Statistics</h2>
{{if .Rules}}<ul>
{{range .Rules}}<li><strong>{{.RuleID}}:</strong> {{.Count}} hits</li>
{{end}}</ul>{{else}}<p>No rule violations recorded.</p>{{end}}
{{if .Recent}}<h2>Recent Verifications</h2>
{{range .Recent}}<div class="{{if .IsSafeToFile}}success-card{{else}}alert-card{{end}}">
<strong>{{.PatientID}} / {{.VisitID}}</strong> at {{time .RecordedAt}}: score {{printf "%.2f" .Score}}{{if not .IsSafeToFile}}, not safe to file{{end}}
{{if .Alerts}}<ul>{{range .Alerts}}<li>[{{.Severity}}] {{.RuleID}}: {{.Message}}</li>{{end}}</ul>{{end}}
</div>
{{end}}{{end}}
<p><i>Generated {{time .GeneratedAt}} as evidence of deterministic safety guardrails.</i></p>
</body>
</html>
`))

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
