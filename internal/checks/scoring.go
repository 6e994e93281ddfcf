package checks

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// WeightTable maps every severity to a positive weight and carries the
// passing threshold percentage. It is supplied by configuration and only read
// here.
type WeightTable struct {
	Weights          map[Severity]float64
	PassingThreshold float64
}

// Validate checks that all four severities carry a positive weight and that
// the threshold is a percentage. Every problem is reported, not just the first.
func (w WeightTable) Validate() error {
	var errs error
	for _, sev := range Severities {
		weight, ok := w.Weights[sev]
		switch {
		case !ok:
			errs = multierr.Append(errs, &ConfigurationError{Field: "weights." + sev.String(), Err: ErrMissingWeight})
		case !(weight > 0) || math.IsInf(weight, 0):
			errs = multierr.Append(errs, &ConfigurationError{
				Field: "weights." + sev.String(),
				Err:   fmt.Errorf("%w: %v must be positive and finite", ErrInvalidWeight, weight),
			})
		}
	}
	for sev := range w.Weights {
		if !sev.Valid() {
			errs = multierr.Append(errs, &ConfigurationError{
				Field: "weights",
				Err:   fmt.Errorf("%w: undeclared severity %s", ErrInvalidWeight, sev),
			})
		}
	}
	if !(w.PassingThreshold >= 0 && w.PassingThreshold <= 100) {
		errs = multierr.Append(errs, &ConfigurationError{
			Field: "passing_threshold",
			Err:   fmt.Errorf("%w: %v", ErrInvalidThreshold, w.PassingThreshold),
		})
	}
	return errs
}

// Breakdown is the full result of scoring a set of findings
type Breakdown struct {
	Percentage      float64
	Incurred        float64
	Possible        float64
	Threshold       float64
	PassedThreshold bool
	StatusCounts    map[Status]int
	SeverityCounts  map[Severity]int
}

// Score reduces findings to a compliance percentage. Findings with an
// unknown status or severity are rejected.
//
// SKIPPED findings are left out entirely. PASS adds its weight to the
// possible total; FAIL and ERROR add to both possible and incurred, since an
// unverifiable control cannot be credited. With nothing possible the result
// is 100.
func Score(findings []Finding, weights WeightTable) (Breakdown, error) {
	if err := weights.Validate(); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Threshold:      weights.PassingThreshold,
		StatusCounts:   make(map[Status]int, len(Statuses)),
		SeverityCounts: make(map[Severity]int, len(Severities)),
	}
	for _, st := range Statuses {
		b.StatusCounts[st] = 0
	}
	for _, sev := range Severities {
		b.SeverityCounts[sev] = 0
	}

	for _, f := range findings {
		if !f.Status.Valid() {
			return Breakdown{}, fmt.Errorf("%w: finding %s has status %q", ErrInvalidFinding, f.ID, f.Status)
		}
		if !f.Severity.Valid() {
			return Breakdown{}, fmt.Errorf("%w: finding %s has severity %d", ErrInvalidFinding, f.ID, int(f.Severity))
		}
		b.StatusCounts[f.Status]++
		b.SeverityCounts[f.Severity]++

		if f.Status == StatusSkipped {
			continue
		}
		weight, ok := weights.Weights[f.Severity]
		if !ok {
			return Breakdown{}, &ConfigurationError{
				Field: "weights",
				Err:   fmt.Errorf("%w: no weight for finding %s severity %s", ErrMissingWeight, f.ID, f.Severity),
			}
		}
		b.Possible += weight
		if f.Status == StatusFail || f.Status == StatusError {
			b.Incurred += weight
		}
	}

	b.Percentage = percentage(b.Incurred, b.Possible)
	b.PassedThreshold = b.Percentage >= b.Threshold
	return b, nil
}

func percentage(incurred, possible float64) float64 {
	if possible == 0 {
		return 100
	}
	return clamp(100*(1-incurred/possible), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
