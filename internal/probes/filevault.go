package probes

import (
	"context"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

// FileVaultCheck verifies full disk encryption is on
type FileVaultCheck struct{}

func (c *FileVaultCheck) Describe() checks.Metadata {
	return checks.Metadata{
		ID:          "CIS-2.6.1",
		Title:       "Ensure FileVault Is Enabled",
		Description: "FileVault provides full disk encryption to protect data at rest",
		Category:    "Data Protection",
		Severity:    checks.SeverityCritical,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.DS-1", "ISO27001_A.10.1.1", "PCI_DSS_3.4"},
		Remediation: "Open System Settings > Privacy & Security > FileVault and turn it on, " +
			"store the recovery key safely, or run: sudo fdesetup enable",
		Risk: "Data at rest is not encrypted; all data is accessible if the device is lost or stolen",
	}
}

func (c *FileVaultCheck) Evaluate(ctx context.Context, h host.Host) (checks.Outcome, error) {
	if skip, ok := requireDarwin(h); !ok {
		return skip, nil
	}

	res, err := h.Run(ctx, "fdesetup", "status")
	if err != nil {
		return commandFailure(ctx, "fdesetup", err)
	}
	status := strings.TrimSpace(res.Stdout)
	evidence := map[string]interface{}{"status": status}

	// "Encryption in progress" is printed alongside "FileVault is On."
	switch {
	case strings.Contains(status, "Encryption in progress"):
		evidence["encryption_in_progress"] = true
		return checks.Fail("FileVault encryption is in progress; data is not yet fully protected").
			WithEvidence(evidence).WithRisk("Encryption is being applied but not yet complete"), nil
	case strings.Contains(status, "Decryption in progress"):
		return checks.Fail("FileVault is being turned off").WithEvidence(evidence), nil
	case strings.Contains(status, "FileVault is On"):
		return checks.Pass("FileVault disk encryption is enabled").WithEvidence(evidence), nil
	case strings.Contains(status, "FileVault is Off"):
		return checks.Fail("FileVault disk encryption is disabled; data at rest is readable if the device is lost").WithEvidence(evidence), nil
	default:
		return checks.Errored("FileVault status unclear").
			WithEvidence(evidence).WithRisk("Unable to determine encryption status"), nil
	}
}
