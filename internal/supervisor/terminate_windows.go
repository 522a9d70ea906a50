//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
)

func setSysProcAttr(cmd *exec.Cmd) {}

// terminateProcess force-kills the worker's whole process tree; Windows has
// no graceful cross-console signal for detached children.
func terminateProcess(pid int) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").Run()
}
