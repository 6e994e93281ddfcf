// Package output renders compliance reports for people and machines.
package output

import (
	"fmt"
	"strings"
)

// Format names a report encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Formats lists every supported format
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatCSV, FormatHTML}

// ParseFormat accepts a format name in any case
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s (supported: %s)", raw, formatList())
}

// Machine reports whether the format is meant to be parsed rather than read
func (f Format) Machine() bool {
	return f != FormatText
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
