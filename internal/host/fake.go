package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Fake is an in-memory Host for tests. Commands are keyed by the full command
// line, e.g. "fdesetup status".
type Fake struct {
	GOOS string
	Name string
	Fs   afero.Fs

	mu       sync.Mutex
	commands map[string]fakeCommand
	calls    []string
}

type fakeCommand struct {
	result CommandResult
	err    error
	delay  time.Duration
}

// NewFake returns a Fake reporting goos with an empty in-memory filesystem
func NewFake(goos string) *Fake {
	return &Fake{
		GOOS:     goos,
		Name:     "fake-host",
		Fs:       afero.NewMemMapFs(),
		commands: make(map[string]fakeCommand),
	}
}

// SetCommand registers the result for a command line
func (f *Fake) SetCommand(cmdline string, result CommandResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[cmdline] = fakeCommand{result: result}
	return f
}

// SetCommandError makes a command line fail with err
func (f *Fake) SetCommandError(cmdline string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[cmdline] = fakeCommand{err: err}
	return f
}

// SetCommandDelay makes a command line block for d or until its context ends
func (f *Fake) SetCommandDelay(cmdline string, d time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.commands[cmdline]
	c.delay = d
	f.commands[cmdline] = c
	return f
}

// WriteFile seeds the in-memory filesystem
func (f *Fake) WriteFile(path, content string) *Fake {
	if err := afero.WriteFile(f.Fs, path, []byte(content), 0o644); err != nil {
		panic(err)
	}
	return f
}

// Calls returns the command lines run so far
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) OS() string       { return f.GOOS }
func (f *Fake) Hostname() string { return f.Name }

func (f *Fake) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.Fs, path)
}

func (f *Fake) Exists(path string) (bool, error) {
	return afero.Exists(f.Fs, path)
}

func (f *Fake) Glob(pattern string) ([]string, error) {
	return afero.Glob(f.Fs, pattern)
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	c, ok := f.commands[cmdline]
	f.mu.Unlock()

	if !ok {
		return CommandResult{}, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return CommandResult{}, fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
	if c.err != nil {
		return CommandResult{}, c.err
	}
	return c.result, nil
}
