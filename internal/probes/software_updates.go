package probes

import (
	"context"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

// SoftwareUpdatesCheck verifies no Apple software updates are pending
type SoftwareUpdatesCheck struct{}

func (c *SoftwareUpdatesCheck) Describe() checks.Metadata {
	return checks.Metadata{
		ID:          "CIS-1.1",
		Title:       "Ensure All Apple-Provided Software Is Current",
		Description: "Software updates often contain security patches for vulnerabilities",
		Category:    "System Updates",
		Severity:    checks.SeverityHigh,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.IP-12", "ISO27001_A.12.6.1"},
		Remediation: "Open System Settings > General > Software Update and install all updates, " +
			"or run: sudo softwareupdate -ia --restart",
		Risk: "Outdated software may contain known vulnerabilities that can be exploited by attackers",
	}
}

func (c *SoftwareUpdatesCheck) Evaluate(ctx context.Context, h host.Host) (checks.Outcome, error) {
	if skip, ok := requireDarwin(h); !ok {
		return skip, nil
	}

	res, err := h.Run(ctx, "softwareupdate", "-l")
	if err != nil {
		return commandFailure(ctx, "softwareupdate", err)
	}

	// softwareupdate prints the "no updates" notice on stderr
	combined := strings.ToLower(res.Stdout + "\n" + res.Stderr)
	if strings.Contains(combined, "no new software available") || strings.Contains(combined, "no updates available") {
		return checks.Pass("System is up to date; no pending updates").
			WithEvidence(map[string]interface{}{"updates_available": 0}), nil
	}

	updates := parseUpdates(res.Stdout)
	if len(updates) == 0 {
		return checks.Errored("Could not parse softwareupdate output (exit %d)", res.ExitCode).
			WithEvidence(map[string]interface{}{"output": truncate(res.Stdout, 200)}).
			WithRisk("Unable to verify update status"), nil
	}

	security := false
	for _, u := range updates {
		if strings.Contains(strings.ToLower(u), "security") {
			security = true
			break
		}
	}

	shown := updates
	if len(shown) > 5 {
		shown = shown[:5]
	}
	evidence := map[string]interface{}{
		"updates_available":    len(updates),
		"updates":              shown,
		"has_security_updates": security,
	}
	if security {
		return checks.Fail("%d update(s) available, including security updates", len(updates)).WithEvidence(evidence), nil
	}
	return checks.Fail("%d update(s) available", len(updates)).WithEvidence(evidence), nil
}

// parseUpdates extracts update names from "* Label: name" or "* name" lines
func parseUpdates(output string) []string {
	var updates []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "*") && !strings.HasPrefix(line, "Label:") {
			continue
		}
		var name string
		if _, after, ok := strings.Cut(line, ":"); ok {
			name = strings.TrimSpace(after)
		} else {
			name = strings.TrimSpace(strings.TrimLeft(line, "* "))
		}
		if name != "" {
			updates = append(updates, name)
		}
	}
	return updates
}
