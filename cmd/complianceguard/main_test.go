package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

const firewallState = "/usr/libexec/ApplicationFirewall/socketfilterfw --getglobalstate"

// compliantMac returns a fake macOS host on which every probe passes
func compliantMac() *host.Fake {
	return host.NewFake("darwin").
		SetCommand("softwareupdate -l", host.CommandResult{Stderr: "No new software available.\n"}).
		SetCommand(firewallState, host.CommandResult{Stdout: "Firewall is enabled. (State = 1)"}).
		SetCommand("/usr/libexec/ApplicationFirewall/socketfilterfw --getstealthmode", host.CommandResult{Stdout: "Stealth mode enabled"}).
		SetCommand("fdesetup status", host.CommandResult{Stdout: "FileVault is On."}).
		SetCommand("defaults read com.apple.screensaver idleTime", host.CommandResult{Stdout: "600"}).
		SetCommand("systemsetup -getremotelogin", host.CommandResult{Stdout: "Remote Login: Off"})
}

func useHost(t *testing.T, h host.Host) {
	t.Helper()
	orig := newHost
	newHost = func() host.Host { return h }
	t.Cleanup(func() { newHost = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := newRootCommand()

	assert.Equal(t, "complianceguard", root.Use)
	for _, name := range []string{"config", "log-level", "log-format", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"scan", "check", "list", "dashboard"}, names)
}

func TestScanCommandFlags(t *testing.T) {
	cmd := newScanCommand()

	assert.Equal(t, "scan", cmd.Use)
	for _, name := range []string{"format", "output", "category", "framework", "timeout", "concurrency"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "f", cmd.Flags().Lookup("format").Shorthand)
}

func TestCheckCommandArgs(t *testing.T) {
	cmd := newCheckCommand()
	assert.Equal(t, "check <check-id>", cmd.Use)
	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"CIS-2.6.1"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestScanCompliantHost(t *testing.T) {
	useHost(t, compliantMac())

	out, err := execute(t, "scan", "--format", "json")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 100.0, report["score"].(map[string]interface{})["percentage"])
	assert.Equal(t, 5.0, report["total_checks"])
	assert.Equal(t, "darwin", report["os"])
}

func TestScanNonCompliantHostExitsWithError(t *testing.T) {
	useHost(t, compliantMac().
		SetCommand("fdesetup status", host.CommandResult{Stdout: "FileVault is Off."}).
		SetCommand(firewallState, host.CommandResult{Stdout: "Firewall is disabled. (State = 0)"}))

	out, err := execute(t, "scan")
	assert.ErrorIs(t, err, errNotCompliant)
	assert.Contains(t, out, "CIS-2.6.1")
	assert.Contains(t, out, "NOT PASSING")
}

func TestScanCategoryFilter(t *testing.T) {
	useHost(t, compliantMac())

	out, err := execute(t, "scan", "--format", "json", "--category", "Network Security")
	require.NoError(t, err)

	var report struct {
		Findings []struct {
			ID string `json:"id"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "CIS-2.1.1", report.Findings[0].ID)
	assert.Equal(t, "CIS-4.2", report.Findings[1].ID)
}

func TestScanUnknownCategoryIsAnError(t *testing.T) {
	useHost(t, compliantMac())

	_, err := execute(t, "scan", "--category", "Nope")
	assert.ErrorIs(t, err, checks.ErrEmptyRegistry)
}

func TestScanWritesOutputFile(t *testing.T) {
	useHost(t, compliantMac())
	path := filepath.Join(t.TempDir(), "report.csv")

	_, err := execute(t, "scan", "--format", "csv", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CIS-5.9")
}

func TestScanRejectsBadFormat(t *testing.T) {
	useHost(t, compliantMac())
	_, err := execute(t, "scan", "--format", "pdf")
	assert.Error(t, err)
}

func TestScanUsesConfigFile(t *testing.T) {
	useHost(t, compliantMac().SetCommand("fdesetup status", host.CommandResult{Stdout: "FileVault is Off."}))
	path := filepath.Join(t.TempDir(), "cg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scoring:
  weights: {critical: 1, high: 1, medium: 1, low: 1}
  passing_threshold: 50
`), 0o644))

	// one failure out of five equal weights scores 80
	_, err := execute(t, "scan", "--config", path)
	assert.NoError(t, err)
}

func TestCheckCommand(t *testing.T) {
	useHost(t, compliantMac())

	out, err := execute(t, "check", "CIS-2.6.1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: PASS")

	_, err = execute(t, "check", "CIS-9.9")
	assert.ErrorIs(t, err, checks.ErrUnknownCheck)
}

func TestCheckCommandFailingCheck(t *testing.T) {
	useHost(t, compliantMac().SetCommand("fdesetup status", host.CommandResult{Stdout: "FileVault is Off."}))

	out, err := execute(t, "check", "CIS-2.6.1", "--format", "json")
	assert.ErrorIs(t, err, errNotCompliant)

	var finding checks.Finding
	require.NoError(t, json.Unmarshal([]byte(out), &finding))
	assert.Equal(t, checks.StatusFail, finding.Status)
	assert.NotEmpty(t, finding.Remediation)
	assert.Contains(t, finding.Risk, "not encrypted")

	out, err = execute(t, "check", "CIS-2.6.1")
	assert.ErrorIs(t, err, errNotCompliant)
	assert.Contains(t, out, "Risk: Data at rest is not encrypted")
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, id := range []string{"CIS-1.1", "CIS-2.1.1", "CIS-2.6.1", "CIS-5.9", "CIS-4.2"} {
		assert.Contains(t, out, id)
	}

	out, err = execute(t, "list", "--category", "Data Protection", "--format", "json")
	require.NoError(t, err)
	var catalog []checks.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &catalog))
	require.Len(t, catalog, 1)
	assert.Equal(t, "CIS-2.6.1", catalog[0].ID)
}

func TestBuildRegistryFilters(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		frameworks []string
		want       []string
	}{
		{"no filter", nil, nil, []string{"CIS-1.1", "CIS-2.1.1", "CIS-2.6.1", "CIS-5.9", "CIS-4.2"}},
		{"framework", nil, []string{"PCI_DSS_3.4"}, []string{"CIS-2.6.1"}},
		{"two categories", []string{"Access Control", "System Updates"}, nil, []string{"CIS-1.1", "CIS-5.9"}},
		{"category and framework", []string{"Network Security"}, []string{"NIST_CSF_PR.AC-4"}, []string{"CIS-4.2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := buildRegistry(tt.categories, tt.frameworks)
			require.NoError(t, err)
			var ids []string
			for _, m := range reg.Metadata() {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPersistentPreRunRejectsBadLogLevel(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"list", "--log-level", "loud"})
	assert.Error(t, root.Execute())
}
