package checks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/complianceguard/guard-cli/internal/host"
)

// stubCheck is a check whose behaviour is supplied by the test
type stubCheck struct {
	meta Metadata
	eval func(ctx context.Context, h host.Host) (Outcome, error)
}

func (s *stubCheck) Describe() Metadata { return s.meta }

func (s *stubCheck) Evaluate(ctx context.Context, h host.Host) (Outcome, error) {
	if s.eval == nil {
		return Pass("ok"), nil
	}
	return s.eval(ctx, h)
}

func newStub(id string, sev Severity, outcome Outcome) *stubCheck {
	return &stubCheck{
		meta: Metadata{ID: id, Title: "Check " + id, Category: "General", Severity: sev},
		eval: func(context.Context, host.Host) (Outcome, error) { return outcome, nil },
	}
}

func defaultWeights() WeightTable {
	return WeightTable{
		Weights: map[Severity]float64{
			SeverityCritical: 4,
			SeverityHigh:     3,
			SeverityMedium:   2,
			SeverityLow:      1,
		},
		PassingThreshold: 80,
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"low", SeverityLow, false},
		{"MEDIUM", SeverityMedium, false},
		{" High ", SeverityHigh, false},
		{"critical", SeverityCritical, false},
		{"info", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow, SeverityMedium)
	assert.Less(t, SeverityMedium, SeverityHigh)
	assert.Less(t, SeverityHigh, SeverityCritical)
	assert.False(t, Severity(0).Valid())
	assert.False(t, Severity(5).Valid())
}

func TestSeverityTextEncoding(t *testing.T) {
	data, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{SeverityCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"CRITICAL"}`, string(data))

	var decoded struct {
		S Severity `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"medium"}`), &decoded))
	assert.Equal(t, SeverityMedium, decoded.S)

	_, err = json.Marshal(struct{ S Severity }{Severity(9)})
	assert.Error(t, err)
}

func TestMetadataValidate(t *testing.T) {
	valid := Metadata{ID: "CIS-1", Title: "t", Severity: SeverityLow}
	assert.NoError(t, valid.Validate())

	tests := map[string]Metadata{
		"empty id":        {Title: "t", Severity: SeverityLow},
		"empty title":     {ID: "x", Severity: SeverityLow},
		"bad severity":    {ID: "x", Title: "t"},
		"blank framework": {ID: "x", Title: "t", Severity: SeverityLow, Frameworks: []string{" "}},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, m.Validate(), ErrInvalidMetadata)
		})
	}
}

func TestNewFindingCopiesIdentity(t *testing.T) {
	meta := Metadata{
		ID:          "CIS-2.1.1",
		Title:       "Firewall",
		Category:    "Network Security",
		Severity:    SeverityHigh,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.AC-5"},
		Remediation: "turn it on",
	}
	f := NewFinding(meta, Fail("firewall is off"), 0)

	meta.Frameworks[0] = "mutated"
	assert.Equal(t, "CIS_macOS_14", f.Frameworks[0])
	assert.Equal(t, "turn it on", f.Remediation)
	assert.Equal(t, StatusFail, f.Status)
	assert.Equal(t, ErrorKindNone, f.ErrorKind)

	passed := NewFinding(meta, Pass("on"), 0)
	assert.Empty(t, passed.Remediation, "passing findings carry no remediation hint")

	override := NewFinding(meta, Outcome{Status: StatusFail, Remediation: "specific"}, 0)
	assert.Equal(t, "specific", override.Remediation)
}

func TestNewFindingRisk(t *testing.T) {
	meta := Metadata{ID: "CIS-2.6.1", Title: "FileVault", Severity: SeverityCritical, Risk: "data readable"}

	failed := NewFinding(meta, Fail("off"), 0)
	assert.Equal(t, "data readable", failed.Risk)

	assert.Empty(t, NewFinding(meta, Errored("unclear"), 0).Risk)
	errored := NewFinding(meta, Errored("unclear").WithRisk("unable to verify"), 0)
	assert.Equal(t, "unable to verify", errored.Risk)

	specific := NewFinding(meta, Fail("in progress").WithRisk("not yet complete"), 0)
	assert.Equal(t, "not yet complete", specific.Risk)

	assert.Empty(t, NewFinding(meta, Pass("on"), 0).Risk)
	assert.Empty(t, NewFinding(meta, Skip("linux"), 0).Risk)

	raw, err := json.Marshal(specific)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"risk":"not yet complete"`)
}

func TestReportSerialization(t *testing.T) {
	findings := []Finding{
		NewFinding(Metadata{ID: "A", Title: "a", Severity: SeverityHigh, Frameworks: []string{"ISO27001_A.13.1.1"}}, Fail("bad"), 0),
		NewFinding(Metadata{ID: "B", Title: "b", Severity: SeverityLow}, Pass("good"), 0),
	}
	report, err := NewReport(findings, defaultWeights(), ReportMeta{ScanID: "scan-1", Host: "mac"})
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "scan-1", decoded["scan_id"])
	assert.EqualValues(t, 2, decoded["total_checks"])

	score := decoded["score"].(map[string]interface{})
	assert.InDelta(t, 25.0, score["percentage"], 0.001)
	assert.Equal(t, false, score["passed_threshold"])

	list := decoded["findings"].([]interface{})
	first := list[0].(map[string]interface{})
	assert.Equal(t, "A", first["id"])
	assert.Equal(t, "HIGH", first["severity"])
	assert.Equal(t, "FAIL", first["status"])
	assert.Equal(t, []interface{}{"ISO27001_A.13.1.1"}, first["frameworks"])

	counts := decoded["severity_counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["HIGH"])
	assert.EqualValues(t, 0, counts["CRITICAL"])

	out, err := yaml.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(out), "scan_id: scan-1")
	assert.Contains(t, string(out), "severity: HIGH")
}

func TestReportIsReadOnly(t *testing.T) {
	findings := []Finding{
		NewFinding(Metadata{ID: "A", Title: "a", Severity: SeverityHigh, Frameworks: []string{"CIS"}}, Pass("ok"), 0),
	}
	report, err := NewReport(findings, defaultWeights(), ReportMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, report.ScanID(), "scan id is generated when absent")

	findings[0].Status = StatusFail
	got := report.Findings()
	assert.Equal(t, StatusPass, got[0].Status)

	got[0].Frameworks[0] = "changed"
	assert.Equal(t, "CIS", report.Findings()[0].Frameworks[0])

	b := report.Breakdown()
	b.StatusCounts[StatusFail] = 99
	assert.Equal(t, 0, report.Count(StatusFail))
}

func TestReportCountsSumToTotal(t *testing.T) {
	findings := []Finding{
		NewFinding(Metadata{ID: "1", Title: "t", Severity: SeverityLow}, Pass(""), 0),
		NewFinding(Metadata{ID: "2", Title: "t", Severity: SeverityLow}, Fail(""), 0),
		NewFinding(Metadata{ID: "3", Title: "t", Severity: SeverityHigh}, Errored(""), 0),
		NewFinding(Metadata{ID: "4", Title: "t", Severity: SeverityCritical}, Skip(""), 0),
		NewFinding(Metadata{ID: "5", Title: "t", Severity: SeverityCritical}, Pass(""), 0),
	}
	report, err := NewReport(findings, defaultWeights(), ReportMeta{})
	require.NoError(t, err)

	sum := 0
	for _, st := range Statuses {
		sum += report.Count(st)
	}
	assert.Equal(t, report.TotalChecks(), sum)
	assert.Equal(t, 2, report.CountSeverity(SeverityCritical))
	assert.Equal(t, 2, report.CountSeverity(SeverityLow))
}

func TestNewReportRejectsInvalidFindings(t *testing.T) {
	findings := []Finding{
		NewFinding(Metadata{ID: "1", Title: "t", Severity: SeverityLow}, Pass(""), 0),
		{ID: "2", Title: "hand built", Severity: SeverityHigh, Status: "WARNING"},
	}
	report, err := NewReport(findings, defaultWeights(), ReportMeta{})
	assert.ErrorIs(t, err, ErrInvalidFinding)
	assert.Nil(t, report)
}
