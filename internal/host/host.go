// Package host is the read-only window checks use to inspect the machine.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/afero"
)

// ErrCommandNotFound is returned by Run when the binary is not on PATH
var ErrCommandNotFound = errors.New("command not found")

// CommandResult is the captured result of a command that ran to completion.
// A non-zero ExitCode is not an error.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Host exposes system state to checks. Implementations must be safe for
// concurrent use and must never modify the system.
type Host interface {
	OS() string
	Hostname() string
	ReadFile(path string) ([]byte, error)
	Exists(path string) (bool, error)
	// Glob returns the sorted paths matching pattern, or nil when none match.
	Glob(pattern string) ([]string, error)
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// System is the live host
type System struct {
	fs       afero.Fs
	goos     string
	hostname string
}

// NewSystem returns a Host backed by the real machine. File access goes
// through a read-only filesystem.
func NewSystem() *System {
	name, err := os.Hostname()
	if err != nil {
		name = "unknown"
	}
	return &System{
		fs:       afero.NewReadOnlyFs(afero.NewOsFs()),
		goos:     runtime.GOOS,
		hostname: name,
	}
}

func (s *System) OS() string       { return s.goos }
func (s *System) Hostname() string { return s.hostname }

func (s *System) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

func (s *System) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

func (s *System) Glob(pattern string) ([]string, error) {
	return afero.Glob(s.fs, pattern)
}

// Run executes name with args and captures its output. The process is killed
// when ctx is done.
func (s *System) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	if _, err := exec.LookPath(name); err != nil {
		return CommandResult{}, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}
