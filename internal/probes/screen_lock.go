package probes

import (
	"context"
	"strconv"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

// DefaultMaxIdleSeconds is the CIS recommended screen saver timeout
const DefaultMaxIdleSeconds = 1200

const screenLockUnverifiedRisk = "Unable to verify screen lock configuration"

// ScreenLockCheck verifies the screen saver starts within the allowed idle time
type ScreenLockCheck struct {
	// MaxIdleSeconds overrides DefaultMaxIdleSeconds when positive.
	MaxIdleSeconds int
}

func (c *ScreenLockCheck) Describe() checks.Metadata {
	return checks.Metadata{
		ID:          "CIS-5.9",
		Title:       "Ensure Screen Lock Timeout is Set to 20 Minutes or Less",
		Description: "Automatic screen lock prevents unauthorized access when user is away",
		Category:    "Access Control",
		Severity:    checks.SeverityMedium,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.AC-7", "ISO27001_A.11.2.8"},
		Remediation: "Open System Settings > Lock Screen, start the screen saver after 20 minutes or less " +
			"and require the password immediately",
		Risk: "Extended timeout increases risk of unauthorized access if the user leaves the workstation unattended",
	}
}

func (c *ScreenLockCheck) Evaluate(ctx context.Context, h host.Host) (checks.Outcome, error) {
	if skip, ok := requireDarwin(h); !ok {
		return skip, nil
	}
	limit := c.MaxIdleSeconds
	if limit <= 0 {
		limit = DefaultMaxIdleSeconds
	}

	res, err := h.Run(ctx, "defaults", "read", "com.apple.screensaver", "idleTime")
	if err != nil {
		return commandFailure(ctx, "defaults", err)
	}
	if res.ExitCode != 0 {
		return checks.Errored("Screen lock timeout setting not found (may be using system default)").
			WithEvidence(map[string]interface{}{"configured": false, "error": strings.TrimSpace(res.Stderr)}).
			WithRisk(screenLockUnverifiedRisk), nil
	}

	idle, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return checks.Errored("Could not parse screen lock timeout %q", strings.TrimSpace(res.Stdout)).
			WithRisk(screenLockUnverifiedRisk), nil
	}
	evidence := map[string]interface{}{
		"timeout_seconds":     idle,
		"recommended_max_sec": limit,
	}

	switch {
	case idle <= 0:
		return checks.Fail("Screen lock timeout is not configured; the screen never locks").
			WithEvidence(evidence).WithRisk("Screen will never lock automatically, allowing unauthorized access"), nil
	case idle > limit:
		return checks.Fail("Screen lock timeout is %d minutes (exceeds %d)", idle/60, limit/60).WithEvidence(evidence), nil
	default:
		return checks.Pass("Screen lock timeout is %d minutes", idle/60).WithEvidence(evidence), nil
	}
}
