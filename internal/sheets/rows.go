// Package sheets holds the tabular layout shared by the spreadsheet-style
// publishers: one row per candidate per run.
package sheets

import (
	"time"

	"parity/internal/core"
)

// Header names the columns written by RunRows.
var Header = []any{
	"Generated at", "Run", "Reference", "Headline metric", "Reference value",
	"Candidate", "Status", "Headline value", "Divergence", "Mismatches", "Failure",
}

// RunRows flattens run into one row per candidate, in Header column order.
func RunRows(run core.RunSummary) [][]any {
	rows := make([][]any, 0, len(run.Candidates))
	generatedAt := run.GeneratedAt.UTC().Format(time.RFC3339)
	for _, c := range run.Candidates {
		rows = append(rows, []any{
			generatedAt,
			run.ID,
			run.ReferenceEngine,
			run.HeadlineMetric,
			run.ReferenceValue,
			c.Name,
			string(c.Status),
			c.HeadlineValue,
			c.Divergence,
			c.MismatchCount,
			firstLine(c.Failure),
		})
	}
	return rows
}

// firstLine keeps cells single-line; the full stderr stays in the dashboard.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
