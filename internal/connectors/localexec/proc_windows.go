//go:build windows

package localexec

import (
	"os"
	"os/exec"
)

func defaultShell() []string {
	return []string{"cmd", "/C"}
}

// Windows cannot deliver an interrupt to a child; cancellation kills it.
func configureCancel(cmd *exec.Cmd) {}

func interrupted(state *os.ProcessState) bool {
	return false
}
