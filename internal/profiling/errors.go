package profiling

import "errors"

var (
	// ErrTargetNotFound is returned by Lookup for an unregistered module.method.
	ErrTargetNotFound = errors.New("profile target not found")
	// ErrDuplicate is returned when a target name is registered twice.
	ErrDuplicate = errors.New("profile target already registered")
)
