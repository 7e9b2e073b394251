//go:build windows

package localexec

import (
	"io"
	"os/exec"
)

// runPTY attaches the child directly to the parent's console.
func (l *LocalExec) runPTY(cmd *exec.Cmd, out io.Writer) error {
	cmd.Stdin = l.stdin
	cmd.Stdout = out
	cmd.Stderr = l.stderr
	return cmd.Run()
}
