package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/complianceguard/guard-cli/internal/checks"
)

// Write renders report to w in the given format
func Write(w io.Writer, report *checks.ComplianceReport, format Format) error {
	switch format {
	case FormatText:
		return WriteText(w, report)
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatYAML:
		return WriteYAML(w, report)
	case FormatCSV:
		return WriteCSV(w, report)
	case FormatHTML:
		return WriteHTML(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteJSON outputs the report as indented JSON
func WriteJSON(w io.Writer, report *checks.ComplianceReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// WriteYAML outputs the report as YAML
func WriteYAML(w io.Writer, report *checks.ComplianceReport) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return encoder.Close()
}
