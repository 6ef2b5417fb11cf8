//go:build !unix

package subprocess

import (
	"os"
	"os/exec"
)

func setSysProcAttr(cmd *exec.Cmd) {}

// terminateGroup kills the process directly; there is no graceful signal
// or process group to target on this platform.
func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return p.Kill()
}

func exitSignal(state *os.ProcessState) string {
	return ""
}
