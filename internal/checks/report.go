package checks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReportMeta is the scan context recorded alongside the findings
type ReportMeta struct {
	ScanID    string
	Host      string
	OS        string
	StartedAt time.Time
	Duration  time.Duration
}

// ComplianceReport is the immutable result of one scan. Accessors return
// copies; nothing downstream can alter the findings or the score.
type ComplianceReport struct {
	meta      ReportMeta
	findings  []Finding
	breakdown Breakdown
}

// NewReport composes a report from findings and a weight table. The findings
// slice is copied.
func NewReport(findings []Finding, weights WeightTable, meta ReportMeta) (*ComplianceReport, error) {
	breakdown, err := Score(findings, weights)
	if err != nil {
		return nil, err
	}
	if meta.ScanID == "" {
		meta.ScanID = uuid.NewString()
	}
	copied := make([]Finding, len(findings))
	for i, f := range findings {
		copied[i] = f.clone()
	}
	return &ComplianceReport{meta: meta, findings: copied, breakdown: breakdown}, nil
}

func (r *ComplianceReport) ScanID() string          { return r.meta.ScanID }
func (r *ComplianceReport) Host() string            { return r.meta.Host }
func (r *ComplianceReport) OS() string              { return r.meta.OS }
func (r *ComplianceReport) Timestamp() time.Time    { return r.meta.StartedAt }
func (r *ComplianceReport) Duration() time.Duration { return r.meta.Duration }
func (r *ComplianceReport) TotalChecks() int        { return len(r.findings) }
func (r *ComplianceReport) Score() float64          { return r.breakdown.Percentage }
func (r *ComplianceReport) Threshold() float64      { return r.breakdown.Threshold }

// IsReportPassing reports whether the score meets the passing threshold
func (r *ComplianceReport) IsReportPassing() bool { return r.breakdown.PassedThreshold }

// Findings returns the findings in registration order
func (r *ComplianceReport) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	for i, f := range r.findings {
		out[i] = f.clone()
	}
	return out
}

// Count returns the number of findings with the given status
func (r *ComplianceReport) Count(status Status) int {
	return r.breakdown.StatusCounts[status]
}

// CountSeverity returns the number of findings at the given severity
func (r *ComplianceReport) CountSeverity(sev Severity) int {
	return r.breakdown.SeverityCounts[sev]
}

// Breakdown returns a copy of the scoring breakdown
func (r *ComplianceReport) Breakdown() Breakdown {
	b := r.breakdown
	b.StatusCounts = make(map[Status]int, len(r.breakdown.StatusCounts))
	for k, v := range r.breakdown.StatusCounts {
		b.StatusCounts[k] = v
	}
	b.SeverityCounts = make(map[Severity]int, len(r.breakdown.SeverityCounts))
	for k, v := range r.breakdown.SeverityCounts {
		b.SeverityCounts[k] = v
	}
	return b
}

// ReportView is the serialized form of a report, shared by the JSON, YAML
// and dashboard renderers.
type ReportView struct {
	ScanID         string         `json:"scan_id" yaml:"scan_id"`
	Host           string         `json:"host,omitempty" yaml:"host,omitempty"`
	OS             string         `json:"os,omitempty" yaml:"os,omitempty"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	DurationMS     int64          `json:"duration_ms" yaml:"duration_ms"`
	TotalChecks    int            `json:"total_checks" yaml:"total_checks"`
	StatusCounts   map[string]int `json:"status_counts" yaml:"status_counts"`
	SeverityCounts map[string]int `json:"severity_counts" yaml:"severity_counts"`
	Score          ScoreView      `json:"score" yaml:"score"`
	Findings       []Finding      `json:"findings" yaml:"findings"`
}

type ScoreView struct {
	Percentage      float64 `json:"percentage" yaml:"percentage"`
	Incurred        float64 `json:"incurred" yaml:"incurred"`
	Possible        float64 `json:"possible" yaml:"possible"`
	Threshold       float64 `json:"threshold" yaml:"threshold"`
	PassedThreshold bool    `json:"passed_threshold" yaml:"passed_threshold"`
}

// View returns the stable serialized field set
func (r *ComplianceReport) View() ReportView {
	v := ReportView{
		ScanID:         r.meta.ScanID,
		Host:           r.meta.Host,
		OS:             r.meta.OS,
		StartedAt:      r.meta.StartedAt,
		DurationMS:     r.meta.Duration.Milliseconds(),
		TotalChecks:    len(r.findings),
		StatusCounts:   make(map[string]int, len(r.breakdown.StatusCounts)),
		SeverityCounts: make(map[string]int, len(r.breakdown.SeverityCounts)),
		Score: ScoreView{
			Percentage:      r.breakdown.Percentage,
			Incurred:        r.breakdown.Incurred,
			Possible:        r.breakdown.Possible,
			Threshold:       r.breakdown.Threshold,
			PassedThreshold: r.breakdown.PassedThreshold,
		},
		Findings: r.Findings(),
	}
	for k, n := range r.breakdown.StatusCounts {
		v.StatusCounts[string(k)] = n
	}
	for k, n := range r.breakdown.SeverityCounts {
		v.SeverityCounts[k.String()] = n
	}
	return v
}

func (r *ComplianceReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.View())
}

func (r *ComplianceReport) MarshalYAML() (interface{}, error) {
	return r.View(), nil
}
