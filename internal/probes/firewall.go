package probes

import (
	"context"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

const socketfilterfw = "/usr/libexec/ApplicationFirewall/socketfilterfw"

// FirewallCheck verifies the macOS application firewall is on
type FirewallCheck struct{}

func (c *FirewallCheck) Describe() checks.Metadata {
	return checks.Metadata{
		ID:          "CIS-2.1.1",
		Title:       "Ensure Firewall Is Enabled",
		Description: "The macOS Application Firewall provides protection against network-based attacks",
		Category:    "Network Security",
		Severity:    checks.SeverityHigh,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.AC-5", "ISO27001_A.13.1.1"},
		Remediation: "Open System Settings > Network > Firewall and turn the firewall on, " +
			"or run: sudo " + socketfilterfw + " --setglobalstate on",
		Risk: "System is vulnerable to network-based attacks; unauthorized network connections can be established",
	}
}

func (c *FirewallCheck) Evaluate(ctx context.Context, h host.Host) (checks.Outcome, error) {
	if skip, ok := requireDarwin(h); !ok {
		return skip, nil
	}

	res, err := h.Run(ctx, socketfilterfw, "--getglobalstate")
	if err != nil {
		return commandFailure(ctx, "socketfilterfw", err)
	}
	state := strings.ToLower(res.Stdout)

	switch {
	case strings.Contains(state, "disabled"):
		return checks.Fail("Firewall is disabled; unauthorized inbound connections can be established").
			WithEvidence(map[string]interface{}{"firewall_enabled": false, "output": strings.TrimSpace(res.Stdout)}), nil
	case strings.Contains(state, "enabled"):
		stealth := false
		if sres, err := h.Run(ctx, socketfilterfw, "--getstealthmode"); err == nil {
			stealth = strings.Contains(strings.ToLower(sres.Stdout), "enabled") &&
				!strings.Contains(strings.ToLower(sres.Stdout), "disabled")
		}
		return checks.Pass("Firewall is enabled").
			WithEvidence(map[string]interface{}{"firewall_enabled": true, "stealth_mode": stealth}), nil
	default:
		return checks.Errored("Could not determine firewall state from %q", strings.TrimSpace(res.Stdout)).
			WithRisk("Unable to verify firewall configuration"), nil
	}
}
