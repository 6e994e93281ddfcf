package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/complianceguard/guard-cli/internal/checks"
)

var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgHiRed)
	errorColor = color.New(color.FgYellow)
	skipColor  = color.New(color.FgCyan)
	headColor  = color.New(color.FgHiBlue, color.Bold)
)

func statusLabel(s checks.Status) string {
	switch s {
	case checks.StatusPass:
		return passColor.Sprint("✓ PASS")
	case checks.StatusFail:
		return failColor.Sprint("✗ FAIL")
	case checks.StatusError:
		return errorColor.Sprint("! ERROR")
	default:
		return skipColor.Sprint("- SKIPPED")
	}
}

// WriteText outputs the report in human-readable text format
func WriteText(w io.Writer, report *checks.ComplianceReport) error {
	band := ScoreBand(report.Score())

	fmt.Fprintf(w, "%s\n", headColor.Sprint("Host Security Compliance Report"))
	fmt.Fprintf(w, "===============================\n\n")

	fmt.Fprintf(w, "Scan ID: %s\n", report.ScanID())
	fmt.Fprintf(w, "Host: %s (%s)\n", report.Host(), report.OS())
	fmt.Fprintf(w, "Timestamp: %s\n", report.Timestamp().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(w, "Duration: %v\n\n", report.Duration())

	verdict := passColor.Sprint("PASSING")
	if !report.IsReportPassing() {
		verdict = failColor.Sprint("NOT PASSING")
	}
	fmt.Fprintf(w, "Score: %.1f%% (%s), threshold %.1f%%: %s\n", report.Score(), band.Name, report.Threshold(), verdict)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d errors, %d skipped of %d checks\n\n",
		report.Count(checks.StatusPass), report.Count(checks.StatusFail),
		report.Count(checks.StatusError), report.Count(checks.StatusSkipped), report.TotalChecks())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CHECK ID\tSTATUS\tSEVERITY\tTITLE\tDETAILS\n")
	fmt.Fprintf(tw, "--------\t------\t--------\t-----\t-------\n")
	findings := report.Findings()
	for _, f := range findings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.ID, statusLabel(f.Status), f.Severity, f.Title, ellipsize(f.Explanation, 50))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var attention []checks.Finding
	for _, f := range findings {
		if f.Status == checks.StatusFail || f.Status == checks.StatusError {
			attention = append(attention, f)
		}
	}
	if len(attention) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nFailed Checks Details:\n")
	fmt.Fprintf(w, "======================\n")
	for _, f := range attention {
		fmt.Fprintf(w, "\n%s: %s [%s]\n", f.ID, f.Title, f.Severity)
		fmt.Fprintf(w, "Details: %s\n", f.Explanation)
		if f.Risk != "" {
			fmt.Fprintf(w, "Risk: %s\n", f.Risk)
		}
		if f.ErrorKind != checks.ErrorKindNone {
			fmt.Fprintf(w, "Error kind: %s\n", f.ErrorKind)
		}
		if f.Remediation != "" {
			fmt.Fprintf(w, "Remediation: %s\n", f.Remediation)
		}
		if len(f.Frameworks) > 0 {
			fmt.Fprintf(w, "Frameworks: %s\n", strings.Join(f.Frameworks, ", "))
		}
		if len(f.Evidence) > 0 {
			fmt.Fprintf(w, "Evidence:\n")
			keys := make([]string, 0, len(f.Evidence))
			for k := range f.Evidence {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "  %s: %v\n", k, f.Evidence[k])
			}
		}
	}
	return nil
}

// ellipsize shortens s to at most n runes, marking the cut with "..."
func ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
