package checks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/complianceguard/guard-cli/internal/host"
	"github.com/complianceguard/guard-cli/internal/utils"
)

const (
	DefaultCheckTimeout = 30 * time.Second
	DefaultConcurrency  = 4
)

// RunnerOptions controls the execution envelope
type RunnerOptions struct {
	// Timeout bounds each check. Zero means DefaultCheckTimeout.
	Timeout time.Duration
	// Concurrency is the number of checks run at once. Values below one run
	// checks sequentially.
	Concurrency int
	Logger      *utils.Logger
}

// CheckRunner executes every check in a registry and assembles the report.
// It holds no state between runs.
type CheckRunner struct {
	registry    *CheckRegistry
	timeout     time.Duration
	concurrency int
	logger      *utils.Logger
	now         func() time.Time
}

// NewCheckRunner creates a runner with default options
func NewCheckRunner(registry *CheckRegistry) *CheckRunner {
	return NewCheckRunnerWithOptions(registry, RunnerOptions{})
}

// NewCheckRunnerWithOptions creates a runner with explicit options
func NewCheckRunnerWithOptions(registry *CheckRegistry, opts RunnerOptions) *CheckRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCheckTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDiscardLogger()
	}
	return &CheckRunner{
		registry:    registry,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// RunAll evaluates every registered check against h and scores the findings.
// Setup problems (bad weights, empty registry) are returned before any check
// runs; once checks start, a report is always produced.
func (r *CheckRunner) RunAll(ctx context.Context, h host.Host, weights WeightTable) (*ComplianceReport, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if r.registry == nil {
		return nil, fmt.Errorf("run checks: %w", ErrEmptyRegistry)
	}
	if h == nil {
		return nil, errors.New("run checks: nil host")
	}

	r.registry.Seal()
	entries := r.registry.entries(nil)
	if len(entries) == 0 {
		return nil, fmt.Errorf("run checks: %w", ErrEmptyRegistry)
	}

	log := r.logger.WithComponent("runner")
	log.WithField("checks", len(entries)).WithField("concurrency", r.concurrency).Debug("Starting scan")

	start := r.now()
	mapper := iter.Mapper[entry, Finding]{MaxGoroutines: r.concurrency}
	findings := mapper.Map(entries, func(e *entry) Finding {
		return r.execute(ctx, h, *e)
	})
	elapsed := r.now().Sub(start)

	report, err := NewReport(findings, weights, ReportMeta{
		Host:      h.Hostname(),
		OS:        h.OS(),
		StartedAt: start.UTC(),
		Duration:  elapsed,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"total":   report.TotalChecks(),
		"passed":  report.Count(StatusPass),
		"failed":  report.Count(StatusFail),
		"errors":  report.Count(StatusError),
		"skipped": report.Count(StatusSkipped),
		"score":   fmt.Sprintf("%.1f", report.Score()),
	}).Infof("Completed %d checks in %v", report.TotalChecks(), elapsed)

	return report, nil
}

// RunOne evaluates a single registered check through the same envelope
func (r *CheckRunner) RunOne(ctx context.Context, h host.Host, id string) (Finding, error) {
	if r.registry == nil {
		return Finding{}, fmt.Errorf("run check %s: %w", id, ErrEmptyRegistry)
	}
	if h == nil {
		return Finding{}, fmt.Errorf("run check %s: nil host", id)
	}
	for _, e := range r.registry.entries(nil) {
		if e.meta.ID == id {
			return r.execute(ctx, h, e), nil
		}
	}
	return Finding{}, fmt.Errorf("run check %s: %w", id, ErrUnknownCheck)
}

type evalResult struct {
	outcome Outcome
	err     error
}

// execute runs one check with a timeout and turns every failure mode into a
// finding. A check that ignores its context is abandoned on timeout; its
// goroutine finishes into a buffered channel nobody reads.
func (r *CheckRunner) execute(parent context.Context, h host.Host, e entry) Finding {
	log := r.logger.WithComponent("runner").WithField("check", e.meta.ID)
	start := r.now()

	if err := parent.Err(); err != nil {
		return errorFinding(e.meta, ErrorKindCancelled, "scan cancelled before check started", 0)
	}

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	done := make(chan evalResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.WithField("stack", string(debug.Stack())).Debug("Check panicked")
				done <- evalResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		outcome, err := e.check.Evaluate(ctx, h)
		done <- evalResult{outcome: outcome, err: err}
	}()

	var res evalResult
	select {
	case res = <-done:
	case <-ctx.Done():
		elapsed := r.now().Sub(start)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			log.WithField("timeout", r.timeout).Warn("Check timed out")
			return errorFinding(e.meta, ErrorKindTimeout, fmt.Sprintf("timed out after %v", r.timeout), elapsed)
		}
		log.Warn("Check cancelled")
		return errorFinding(e.meta, ErrorKindCancelled, "scan cancelled", elapsed)
	}
	elapsed := r.now().Sub(start)

	if res.err != nil {
		// a probe that gave up because its own context expired is still a timeout
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil && parent.Err() == nil {
			return errorFinding(e.meta, ErrorKindTimeout, fmt.Sprintf("timed out after %v", r.timeout), elapsed)
		}
		perr := &ProbeError{CheckID: e.meta.ID, Err: res.err}
		log.WithError(perr).Debug("Check failed")
		return errorFinding(e.meta, ErrorKindProbe, res.err.Error(), elapsed)
	}

	if !res.outcome.Status.Valid() {
		return errorFinding(e.meta, ErrorKindProbe, fmt.Sprintf("check returned invalid status %q", res.outcome.Status), elapsed)
	}

	log.WithField("status", res.outcome.Status).WithField("duration", elapsed).Debug("Check finished")
	return NewFinding(e.meta, res.outcome, elapsed)
}
