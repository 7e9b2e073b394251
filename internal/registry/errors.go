package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for registration and dispatch.
var (
	ErrUnknownTask      = errors.New("unknown task")
	ErrUnknownFlag      = errors.New("unknown flag")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMissingArgument  = errors.New("missing required argument")
	ErrTooManyArgs      = errors.New("too many arguments")
	ErrDuplicateTask    = errors.New("task already registered")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ExitError asks the dispatcher to terminate with Code.
type ExitError struct {
	Code    int
	Message string
}

// Exit returns an error that makes the dispatcher exit with code.
func Exit(code int) error {
	return &ExitError{Code: code}
}

// Exitf is Exit with a message printed to stderr.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("exit status %d", e.Code)
}
