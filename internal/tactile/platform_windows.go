//go:build windows

package tactile

import (
	"errors"
	"os"
	"os/exec"
)

// setupProcessGroup is a no-op on Windows.
func setupProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the build process. Child processes are not tracked.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
