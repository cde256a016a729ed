package registry

import "errors"

var (
	// ErrCorruptRegistry is returned when the registry document cannot be parsed.
	ErrCorruptRegistry = errors.New("corrupt registry")
	// ErrNotFound is returned when an operation names an unknown script.
	ErrNotFound = errors.New("script not found")
	// ErrExists is returned when adding a name that is already registered.
	ErrExists = errors.New("script already exists")
	// ErrInvalidName is returned for names unusable as a directory name.
	ErrInvalidName = errors.New("invalid script name")
)
