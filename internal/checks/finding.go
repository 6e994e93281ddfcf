package checks

import "time"

// Finding is the recorded outcome of evaluating one check once. Identity
// fields are copied from the check metadata, so a finding stays valid after
// the registry that produced it is gone.
type Finding struct {
	ID          string                 `json:"id" yaml:"id"`
	Title       string                 `json:"title" yaml:"title"`
	Category    string                 `json:"category" yaml:"category"`
	Severity    Severity               `json:"severity" yaml:"severity"`
	Frameworks  []string               `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Status      Status                 `json:"status" yaml:"status"`
	Explanation string                 `json:"explanation" yaml:"explanation"`
	Remediation string                 `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	Risk        string                 `json:"risk,omitempty" yaml:"risk,omitempty"`
	ErrorKind   ErrorKind              `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Evidence    map[string]interface{} `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Duration    time.Duration          `json:"-" yaml:"-"`
	DurationMS  int64                  `json:"duration_ms" yaml:"duration_ms"`
}

// NewFinding builds a finding from check metadata and a probe outcome.
// Metadata remediation fills in for FAIL and ERROR outcomes, metadata risk
// for FAIL only.
func NewFinding(meta Metadata, outcome Outcome, elapsed time.Duration) Finding {
	remediation, risk := outcome.Remediation, outcome.Risk
	if remediation == "" && outcome.Status != StatusPass && outcome.Status != StatusSkipped {
		remediation = meta.Remediation
	}
	if risk == "" && outcome.Status == StatusFail {
		risk = meta.Risk
	}
	var evidence map[string]interface{}
	if len(outcome.Evidence) > 0 {
		evidence = make(map[string]interface{}, len(outcome.Evidence))
		for k, v := range outcome.Evidence {
			evidence[k] = v
		}
	}
	f := Finding{
		ID:          meta.ID,
		Title:       meta.Title,
		Category:    meta.Category,
		Severity:    meta.Severity,
		Frameworks:  append([]string(nil), meta.Frameworks...),
		Status:      outcome.Status,
		Explanation: outcome.Explanation,
		Remediation: remediation,
		Risk:        risk,
		Evidence:    evidence,
		Duration:    elapsed,
		DurationMS:  elapsed.Milliseconds(),
	}
	if f.Status == StatusError {
		f.ErrorKind = ErrorKindProbe
	}
	return f
}

// errorFinding builds an ERROR finding with the given kind
func errorFinding(meta Metadata, kind ErrorKind, explanation string, elapsed time.Duration) Finding {
	f := NewFinding(meta, Outcome{Status: StatusError, Explanation: explanation}, elapsed)
	f.ErrorKind = kind
	return f
}

// IsTimeout reports whether the finding was synthesized for a hung check
func (f Finding) IsTimeout() bool {
	return f.Status == StatusError && f.ErrorKind == ErrorKindTimeout
}

func (f Finding) clone() Finding {
	f.Frameworks = append([]string(nil), f.Frameworks...)
	if f.Evidence != nil {
		ev := make(map[string]interface{}, len(f.Evidence))
		for k, v := range f.Evidence {
			ev[k] = v
		}
		f.Evidence = ev
	}
	return f
}
