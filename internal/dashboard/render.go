package dashboard

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"parity/internal/core"
)

//go:embed templates/*.md.tmpl
var templatesFS embed.FS

var reportTemplate = template.Must(template.New("report.md.tmpl").Funcs(template.FuncMap{
	"commaf":   humanize.Commaf,
	"status":   statusLabel,
	"optional": optional,
	"signed":   signed,
	"streak":   streakLabel,
	// phase and cutover are rebound per render.
	"phase":   func() string { return "" },
	"cutover": func() string { return "" },
}).ParseFS(templatesFS, "templates/report.md.tmpl"))

// Render writes the Markdown dashboard for report.
func Render(w io.Writer, report *Report) error {
	tmpl, err := reportTemplate.Clone()
	if err != nil {
		return fmt.Errorf("clone report template: %w", err)
	}
	tmpl.Funcs(template.FuncMap{
		"phase": func() string { return report.Window.Phase(report.GeneratedAt) },
		"cutover": func() string {
			cutover, err := time.Parse(core.DateLayout, report.Window.Cutover)
			if err != nil {
				return "date unknown"
			}
			return humanize.RelTime(cutover, report.GeneratedAt, "ago", "from now")
		},
	})
	if err := tmpl.Execute(w, report); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// RenderString is Render into a string.
func RenderString(report *Report) (string, error) {
	var b strings.Builder
	if err := Render(&b, report); err != nil {
		return "", err
	}
	return b.String(), nil
}

func statusLabel(s core.CandidateStatus) string {
	return strings.ToUpper(string(s))
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return humanize.Commaf(*v)
}

func signed(v *float64) string {
	if v == nil {
		return "n/a"
	}
	if *v > 0 {
		return "+" + humanize.Commaf(*v)
	}
	return humanize.Commaf(*v)
}

func streakLabel(n int) string {
	if n == 1 {
		return "1 run"
	}
	return humanize.Comma(int64(n)) + " runs"
}
