//go:build unix

package subprocess

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSysProcAttr starts the CLI in its own process group so that signals
// reach the tool processes it spawns as well.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func killGroup(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}

	return err
}

// exitSignal returns the name of the signal that ended the process, if any.
func exitSignal(state *os.ProcessState) string {
	if state == nil {
		return ""
	}

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}

	return unix.SignalName(ws.Signal())
}
