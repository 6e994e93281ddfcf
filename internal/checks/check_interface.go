package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/complianceguard/guard-cli/internal/host"
)

// ComplianceCheck defines the interface for all compliance checks
type ComplianceCheck interface {
	// Describe returns the static identity of the check. It must not touch the host.
	Describe() Metadata
	// Evaluate inspects the host through h and reports an outcome. Evaluate is
	// read-only; a returned error is recorded as an ERROR finding.
	Evaluate(ctx context.Context, h host.Host) (Outcome, error)
}

// Severity is the ordered criticality of a control
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists every valid severity from lowest to highest
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Valid reports whether s is one of the four declared levels
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// ParseSeverity parses a severity name case-insensitively
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", raw)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status is the outcome of evaluating a check
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// Statuses lists every status in report order
var Statuses = []Status{StatusPass, StatusFail, StatusError, StatusSkipped}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusError, StatusSkipped:
		return true
	}
	return false
}

// Metadata is the immutable identity of a check
type Metadata struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string   `json:"category" yaml:"category"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Frameworks  []string `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Remediation string   `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	// Risk describes the exposure when the control fails.
	Risk        string   `json:"risk,omitempty" yaml:"risk,omitempty"`
}

// Validate returns an error describing the first malformed field
func (m Metadata) Validate() error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidMetadata)
	case strings.TrimSpace(m.Title) == "":
		return fmt.Errorf("%w: empty title", ErrInvalidMetadata)
	case !m.Severity.Valid():
		return fmt.Errorf("%w: severity %d out of range", ErrInvalidMetadata, int(m.Severity))
	}
	for _, fw := range m.Frameworks {
		if strings.TrimSpace(fw) == "" {
			return fmt.Errorf("%w: empty framework tag", ErrInvalidMetadata)
		}
	}
	return nil
}

// Outcome is what a probe reports back to the runner
type Outcome struct {
	Status      Status
	Explanation string
	// Remediation overrides the metadata hint when set.
	Remediation string
	// Risk overrides the metadata risk when set.
	Risk        string
	Evidence    map[string]interface{}
}

// Pass, Fail, Skip and Errored build outcomes with a formatted explanation.
func Pass(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusPass, Explanation: fmt.Sprintf(format, args...)}
}

func Fail(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusFail, Explanation: fmt.Sprintf(format, args...)}
}

func Skip(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusSkipped, Explanation: fmt.Sprintf(format, args...)}
}

func Errored(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusError, Explanation: fmt.Sprintf(format, args...)}
}

// WithEvidence returns a copy of o carrying the given evidence
func (o Outcome) WithEvidence(evidence map[string]interface{}) Outcome {
	o.Evidence = evidence
	return o
}

// WithRisk returns a copy of o carrying the given risk statement
func (o Outcome) WithRisk(risk string) Outcome {
	o.Risk = risk
	return o
}
