package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
)

var csvHeader = []string{
	"Check ID", "Title", "Category", "Severity", "Status",
	"Explanation", "Risk", "Remediation", "Frameworks", "Error Kind", "Duration (ms)",
}

// WriteCSV writes one row per finding followed by a score summary. The
// output starts with a UTF-8 BOM so spreadsheets pick the right encoding.
func WriteCSV(w io.Writer, report *checks.ComplianceReport) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("csv: %w", err)
	}

	findings := report.Findings()
	records := make([][]string, 0, len(findings)+len(checks.Statuses)+8)
	records = append(records, csvHeader)
	for _, f := range findings {
		records = append(records, []string{
			f.ID,
			f.Title,
			f.Category,
			f.Severity.String(),
			string(f.Status),
			f.Explanation,
			f.Risk,
			f.Remediation,
			strings.Join(f.Frameworks, ";"),
			string(f.ErrorKind),
			fmt.Sprintf("%d", f.DurationMS),
		})
	}

	records = append(records,
		[]string{},
		[]string{"Metric", "Value"},
		[]string{"Scan ID", report.ScanID()},
		[]string{"Host", report.Host()},
		[]string{"Score", fmt.Sprintf("%.1f", report.Score())},
		[]string{"Threshold", fmt.Sprintf("%.1f", report.Threshold())},
		[]string{"Passing", fmt.Sprintf("%t", report.IsReportPassing())},
	)
	for _, s := range checks.Statuses {
		records = append(records, []string{string(s), fmt.Sprintf("%d", report.Count(s))})
	}

	// WriteAll stops at the first failed record and flushes
	if err := csv.NewWriter(w).WriteAll(records); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}
