package connectors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for command execution.
var (
	ErrCommandFailed     = errors.New("command failed")
	ErrUserAbort         = errors.New("interrupted by user")
	ErrMissingDependency = errors.New("missing dependency")
)

// FailedError reports a non-zero exit. It matches ErrCommandFailed.
type FailedError struct {
	Result *Result
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Result.Command, e.Result.ExitCode)
	if stderr := lastLine(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Is makes errors.Is(err, ErrCommandFailed) true.
func (e *FailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

// ExitCode returns the exit code of the failed command.
func (e *FailedError) ExitCode() int {
	return e.Result.ExitCode
}

// MissingDependencyError names a tool that is not installed.
type MissingDependencyError struct {
	Tool string
	Hint string
}

func (e *MissingDependencyError) Error() string {
	msg := fmt.Sprintf("%s is not installed", e.Tool)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

// Is makes errors.Is(err, ErrMissingDependency) true.
func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	return strings.TrimSpace(s[strings.LastIndex(s, "\n")+1:])
}
