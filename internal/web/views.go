package web

// views.go renders the HTML report page served to browsers by the validate
// and upload endpoints.

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dataquality/internal/quality"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #d1d5db;padding:.35rem .6rem;text-align:left}
th{background:#f3f4f6}.bad{color:#b91c1c}.ok{color:#047857}.muted{color:#6b7280}`

// ReportPage renders a validation report as a standalone HTML page.
// At most limit invalid rows are listed.
func ReportPage(report *quality.Report, limit int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}

		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Data quality report: %s</title><style>%s</style></head><body>`,
			esc(report.DataSourceName), pageStyle)
		p.printf(`<h1>%s</h1><p class="muted">Report %s, executed %s</p>`,
			esc(orDefault(report.DataSourceName, "Data quality report")),
			report.ID, report.ExecutedAt.Format("2006-01-02 15:04:05 MST"))

		writeSummary(p, report)
		writeErrorSummary(p, report.ErrorSummary)
		writeInvalidRows(p, report.InvalidRowResults(), limit)
		if report.Profile != nil {
			writeProfile(p, *report.Profile)
		}

		p.printf(`</body></html>`)
		return p.err
	})
}

func writeSummary(p *htmlWriter, r *quality.Report) {
	class := "ok"
	if r.InvalidRows > 0 {
		class = "bad"
	}
	p.printf(`<h2>Summary</h2><table>`)
	p.printf(`<tr><th>Total rows</th><td>%d</td></tr>`, r.TotalRows)
	p.printf(`<tr><th>Valid rows</th><td>%d</td></tr>`, r.ValidRows)
	p.printf(`<tr><th>Invalid rows</th><td class="%s">%d</td></tr>`, class, r.InvalidRows)
	p.printf(`<tr><th>Validity</th><td>%.2f%%</td></tr>`, r.ValidityPercentage)
	p.printf(`<tr><th>Duplicates</th><td>%d</td></tr>`, r.DuplicateCount)
	p.printf(`</table>`)
}

func writeErrorSummary(p *htmlWriter, summary map[string]int) {
	if len(summary) == 0 {
		return
	}
	fields := make([]string, 0, len(summary))
	for f := range summary {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	p.printf(`<h2>Errors by field</h2><table><tr><th>Field</th><th>Failures</th></tr>`)
	for _, f := range fields {
		p.printf(`<tr><td>%s</td><td>%d</td></tr>`, esc(f), summary[f])
	}
	p.printf(`</table>`)
}

func writeInvalidRows(p *htmlWriter, rows []quality.RowResult, limit int) {
	if len(rows) == 0 {
		p.printf(`<p class="ok">All rows passed validation.</p>`)
		return
	}

	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	p.printf(`<h2>Invalid rows</h2><table><tr><th>Row</th><th>Problems</th></tr>`)
	for _, rr := range shown {
		p.printf(`<tr><td>%d</td><td>%s</td></tr>`, rr.RowNumber, esc(strings.Join(rowProblems(rr), "; ")))
	}
	p.printf(`</table>`)
	if len(shown) < len(rows) {
		p.printf(`<p class="muted">Showing %d of %d invalid rows.</p>`, len(shown), len(rows))
	}
}

func rowProblems(rr quality.RowResult) []string {
	var problems []string
	for _, fr := range rr.FieldResults {
		if !fr.IsValid {
			problems = append(problems, fr.FieldName+": "+fr.ErrorMessage)
		}
	}
	problems = append(problems, rr.CrossFieldErrors...)
	if rr.DuplicateRowNumber != nil {
		problems = append(problems, fmt.Sprintf("duplicate of row %d", *rr.DuplicateRowNumber))
	}
	return problems
}

func writeProfile(p *htmlWriter, profile quality.DataProfile) {
	view := newProfileView(profile)

	p.printf(`<h2>Profile</h2><table><tr><th>Field</th><th>Type</th><th>Completeness</th><th>Uniqueness</th><th>Min</th><th>Max</th><th>Average</th></tr>`)
	for _, fp := range view.FieldProfiles {
		p.printf(`<tr><td>%s</td><td>%s</td><td>%.1f%%</td><td>%.1f%%</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			esc(fp.FieldName), esc(string(fp.FieldType)), fp.Completeness, fp.Uniqueness,
			esc(deref(fp.MinValue)), esc(deref(fp.MaxValue)), formatOptional(fp.Average))
	}
	p.printf(`</table>`)

	if len(view.PotentialIssues) > 0 {
		p.printf(`<h3>Potential issues</h3><ul>`)
		for _, issue := range view.PotentialIssues {
			p.printf(`<li>%s</li>`, esc(issue))
		}
		p.printf(`</ul>`)
	}
}

// htmlWriter remembers the first write error so rendering code stays linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *f)
}
