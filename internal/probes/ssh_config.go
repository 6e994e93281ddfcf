package probes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

// DefaultSSHDConfig is the OpenSSH daemon configuration path
const DefaultSSHDConfig = "/etc/ssh/sshd_config"

// maxIncludeDepth is sshd's limit on nested Include directives
const maxIncludeDepth = 16

var errIncludeDepth = errors.New("too many nested Include directives")

const sshUnverifiedRisk = "Unable to verify SSH security configuration"

// insecureDirectives maps an sshd keyword to the value that makes it unsafe
var insecureDirectives = []struct {
	keyword string
	value   string
	issue   string
}{
	{"permitrootlogin", "yes", "Root login is permitted"},
	{"passwordauthentication", "yes", "Password authentication is enabled (prefer key-based auth)"},
	{"permitemptypasswords", "yes", "Empty passwords are permitted"},
}

// SSHConfigCheck verifies remote login is off or hardened
type SSHConfigCheck struct {
	// ConfigPath overrides DefaultSSHDConfig when set.
	ConfigPath string
}

func (c *SSHConfigCheck) Describe() checks.Metadata {
	return checks.Metadata{
		ID:          "CIS-4.2",
		Title:       "Ensure SSH Is Disabled or Securely Configured",
		Description: "SSH should be disabled if not needed, or configured securely if required",
		Category:    "Network Security",
		Severity:    checks.SeverityHigh,
		Frameworks:  []string{"CIS_macOS_14", "NIST_CSF_PR.AC-4", "ISO27001_A.13.1.1"},
		Remediation: "Disable Remote Login if it is not needed (System Settings > General > Sharing), " +
			"otherwise set PermitRootLogin no, PasswordAuthentication no and PermitEmptyPasswords no in " +
			DefaultSSHDConfig + " and restart sshd",
		Risk: "SSH configuration allows insecure practices that could lead to unauthorized access",
	}
}

func (c *SSHConfigCheck) Evaluate(ctx context.Context, h host.Host) (checks.Outcome, error) {
	path := c.ConfigPath
	if path == "" {
		path = DefaultSSHDConfig
	}

	switch h.OS() {
	case darwin:
		res, err := h.Run(ctx, "systemsetup", "-getremotelogin")
		if err != nil {
			return commandFailure(ctx, "systemsetup", err)
		}
		out := strings.TrimSpace(res.Stdout)
		switch {
		case strings.HasSuffix(out, "On"):
		case strings.HasSuffix(out, "Off"):
			return checks.Pass("Remote login (SSH) is disabled").
				WithEvidence(map[string]interface{}{"ssh_enabled": false}), nil
		default:
			return checks.Errored("Could not determine remote login state from %q", out).WithRisk(sshUnverifiedRisk), nil
		}
	case "linux":
		exists, err := h.Exists(path)
		if err != nil {
			return checks.Outcome{}, err
		}
		if !exists {
			return checks.Skip("OpenSSH server is not installed"), nil
		}
	default:
		return checks.Skip("SSH configuration check is not supported on %s", h.OS()), nil
	}

	data, err := h.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return checks.Errored("SSH is enabled but %s was not found", path).
			WithEvidence(map[string]interface{}{"ssh_enabled": true}).WithRisk(sshUnverifiedRisk), nil
	case errors.Is(err, os.ErrPermission):
		return checks.Errored("insufficient permissions to read %s", path).
			WithEvidence(map[string]interface{}{"ssh_enabled": true}).WithRisk(sshUnverifiedRisk), nil
	case err != nil:
		return checks.Outcome{}, err
	}

	cfg := newSSHDConfig()
	if err := cfg.parse(h, path, string(data), 0); err != nil {
		return checks.Errored("Could not read SSH configuration: %v", err).
			WithEvidence(map[string]interface{}{"ssh_enabled": true, "config_path": path}).
			WithRisk(sshUnverifiedRisk), nil
	}

	issues := sshIssues(cfg.settings)
	evidence := map[string]interface{}{
		"ssh_enabled":  true,
		"config_path":  path,
		"config_files": cfg.files,
		"issues":       issues,
	}
	if len(issues) > 0 {
		return checks.Fail("SSH is enabled with %d insecure setting(s): %s", len(issues), strings.Join(issues, "; ")).
			WithEvidence(evidence), nil
	}
	return checks.Pass("SSH is enabled and securely configured").WithEvidence(evidence), nil
}

// sshdConfig collects the global settings of a configuration file and the
// files it includes, keyed by lowercased keyword.
type sshdConfig struct {
	settings map[string]string
	files    []string
}

func newSSHDConfig() *sshdConfig {
	return &sshdConfig{settings: make(map[string]string)}
}

// parse reads content as the file at path. sshd honors the first occurrence
// of a keyword, expands Include in place and ends the global section of a
// file at its first Match block.
func (c *sshdConfig) parse(h host.Host, path, content string, depth int) error {
	c.files = append(c.files, path)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '='
		})
		if len(fields) < 2 {
			continue
		}
		switch keyword := strings.ToLower(fields[0]); keyword {
		case "match":
			return nil
		case "include":
			if err := c.include(h, fields[1:], depth+1); err != nil {
				return err
			}
		default:
			if _, seen := c.settings[keyword]; !seen {
				c.settings[keyword] = strings.ToLower(fields[1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// include parses every file matching patterns in lexical order. Relative
// patterns resolve against the sshd configuration directory.
func (c *sshdConfig) include(h host.Host, patterns []string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%w (limit %d)", errIncludeDepth, maxIncludeDepth)
	}
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(filepath.Dir(DefaultSSHDConfig), pattern)
		}
		matches, err := h.Glob(pattern)
		if err != nil {
			return fmt.Errorf("include %s: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			data, err := h.ReadFile(match)
			if err != nil {
				return fmt.Errorf("include %s: %w", match, err)
			}
			if err := c.parse(h, match, string(data), depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func sshIssues(settings map[string]string) []string {
	issues := []string{}
	for _, d := range insecureDirectives {
		if settings[d.keyword] == d.value {
			issues = append(issues, d.issue)
		}
	}
	return issues
}
