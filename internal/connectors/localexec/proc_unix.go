//go:build !windows

package localexec

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

func defaultShell() []string {
	if _, err := os.Stat("/bin/bash"); err == nil {
		return []string{"/bin/bash", "-c"}
	}
	return []string{"/bin/sh", "-c"}
}

// configureCancel makes context cancellation interrupt the child the way a
// terminal Ctrl-C would, escalating to a kill if it does not exit.
func configureCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second
}

func interrupted(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGINT
}
