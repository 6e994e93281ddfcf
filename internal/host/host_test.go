package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRunMissingCommand(t *testing.T) {
	s := NewSystem()

	_, err := s.Run(context.Background(), "definitely-not-a-real-binary-7f3a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandNotFound))
}

func TestSystemReadsButCannotWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshd_config")
	require.NoError(t, os.WriteFile(path, []byte("PermitRootLogin no\n"), 0o600))

	s := NewSystem()
	assert.Equal(t, runtime.GOOS, s.OS())

	data, err := s.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PermitRootLogin no\n", string(data))

	ok, err := s.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	matches, err := s.Glob(filepath.Join(dir, "sshd_*"))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, matches)

	_, err = s.fs.Create(filepath.Join(dir, "new"))
	assert.Error(t, err, "system filesystem must be read-only")
}

func TestSystemRunExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	s := NewSystem()

	res, err := s.Run(context.Background(), "sh", "-c", "echo out; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
}

func TestFakeCommands(t *testing.T) {
	f := NewFake("darwin").
		SetCommand("fdesetup status", CommandResult{Stdout: "FileVault is On."}).
		SetCommandError("softwareupdate -l", os.ErrPermission)

	res, err := f.Run(context.Background(), "fdesetup", "status")
	require.NoError(t, err)
	assert.Equal(t, "FileVault is On.", res.Stdout)

	_, err = f.Run(context.Background(), "softwareupdate", "-l")
	assert.ErrorIs(t, err, os.ErrPermission)

	_, err = f.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCommandNotFound)

	assert.Equal(t, []string{"fdesetup status", "softwareupdate -l", "missing"}, f.Calls())
}

func TestFakeDelayHonoursContext(t *testing.T) {
	f := NewFake("darwin").
		SetCommand("sleep", CommandResult{}).
		SetCommandDelay("sleep", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Run(ctx, "sleep")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFakeFiles(t *testing.T) {
	f := NewFake("linux").WriteFile("/etc/ssh/sshd_config", "PermitRootLogin yes")

	ok, err := f.Exists("/etc/ssh/sshd_config")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.ReadFile("/etc/missing")
	assert.True(t, os.IsNotExist(err))
}

func TestFakeGlob(t *testing.T) {
	f := NewFake("linux").
		WriteFile("/etc/ssh/sshd_config.d/50-cloud-init.conf", "PasswordAuthentication yes").
		WriteFile("/etc/ssh/sshd_config.d/10-base.conf", "PermitRootLogin no").
		WriteFile("/etc/ssh/sshd_config.d/README", "")

	matches, err := f.Glob("/etc/ssh/sshd_config.d/*.conf")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/etc/ssh/sshd_config.d/10-base.conf",
		"/etc/ssh/sshd_config.d/50-cloud-init.conf",
	}, matches)

	none, err := f.Glob("/etc/ssh/missing.d/*.conf")
	require.NoError(t, err)
	assert.Empty(t, none)
}
