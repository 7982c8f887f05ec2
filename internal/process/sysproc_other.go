//go:build !unix && !windows

package process

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

// Terminate kills the backend process; this platform has no process groups.
func Terminate(cmd *exec.Cmd) error {
	return Kill(cmd)
}

// Kill kills the backend process.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}
