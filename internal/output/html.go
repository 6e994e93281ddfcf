package output

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/complianceguard/guard-cli/internal/checks"
)

//go:embed templates/report.html
var templatesFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templatesFS, "templates/report.html"))

const uncategorized = "Uncategorized"

type statusCount struct {
	Status checks.Status
	Count  int
}

// categoryGroup is the findings of one category in registration order
type categoryGroup struct {
	Name     string
	Findings []checks.Finding
}

type htmlView struct {
	ScanID    string
	Host      string
	OS        string
	StartedAt string
	Score     float64
	Threshold float64
	Passing   bool
	Band      Band
	Counts    []statusCount
	Groups    []categoryGroup
}

// WriteHTML renders the report as a standalone HTML page
func WriteHTML(w io.Writer, report *checks.ComplianceReport) error {
	view := htmlView{
		ScanID:    report.ScanID(),
		Host:      report.Host(),
		OS:        report.OS(),
		StartedAt: report.Timestamp().UTC().Format(time.RFC1123),
		Score:     report.Score(),
		Threshold: report.Threshold(),
		Passing:   report.IsReportPassing(),
		Band:      ScoreBand(report.Score()),
		Groups:    groupByCategory(report.Findings()),
	}
	for _, s := range checks.Statuses {
		view.Counts = append(view.Counts, statusCount{Status: s, Count: report.Count(s)})
	}

	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	return nil
}

// groupByCategory keeps categories in the order they first appear
func groupByCategory(findings []checks.Finding) []categoryGroup {
	var groups []categoryGroup
	index := make(map[string]int)
	for _, f := range findings {
		name := f.Category
		if name == "" {
			name = uncategorized
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, categoryGroup{Name: name})
		}
		groups[i].Findings = append(groups[i].Findings, f)
	}
	return groups
}
