//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the worker in its own process group so termination
// signals reach the whole tree.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends a graceful termination signal to the worker's
// process group.
func terminateProcess(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}
