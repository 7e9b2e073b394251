//go:build windows

package browser

import "os/exec"

// Windows doesn't use Setsid; the started process outlives chore as is.
func configureDetached(cmd *exec.Cmd) {}
