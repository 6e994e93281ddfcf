// Package probes contains the host security controls shipped with the CLI.
package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/host"
)

const darwin = "darwin"

// All returns a fresh instance of every probe in registration order
func All() []checks.ComplianceCheck {
	return []checks.ComplianceCheck{
		&SoftwareUpdatesCheck{},
		&FirewallCheck{},
		&FileVaultCheck{},
		&ScreenLockCheck{},
		&SSHConfigCheck{},
	}
}

// RegisterAll registers every probe with registry
func RegisterAll(registry *checks.CheckRegistry) error {
	for _, check := range All() {
		if err := registry.Register(check); err != nil {
			return fmt.Errorf("failed to register %s: %w", check.Describe().ID, err)
		}
	}
	return nil
}

func requireDarwin(h host.Host) (checks.Outcome, bool) {
	if h.OS() != darwin {
		return checks.Skip("control applies to macOS only; host is %s", h.OS()), false
	}
	return checks.Outcome{}, true
}

// commandFailure maps a failed command to an outcome. Missing binaries and
// permission problems are expected on some hosts and become ERROR outcomes;
// anything else, including context expiry, is handed back to the runner.
func commandFailure(ctx context.Context, name string, err error) (checks.Outcome, error) {
	if ctx.Err() != nil {
		return checks.Outcome{}, err
	}
	switch {
	case errors.Is(err, host.ErrCommandNotFound):
		return checks.Errored("%s is not available on this host", name).
			WithEvidence(map[string]interface{}{"error": err.Error()}), nil
	case errors.Is(err, os.ErrPermission):
		return checks.Errored("insufficient permissions to run %s", name).
			WithEvidence(map[string]interface{}{"error": err.Error()}), nil
	}
	return checks.Outcome{}, err
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
