package plugin

import "errors"

// Plugin errors.
var (
	// ErrNotSupported is returned when a plugin lacks the requested capability.
	ErrNotSupported = errors.New("operation not supported by target type")

	// ErrDuplicateType is returned when a type is registered twice.
	ErrDuplicateType = errors.New("target type already registered")

	// ErrInvalidPlugin is returned for a nil plugin or one without a type.
	ErrInvalidPlugin = errors.New("invalid plugin")
)
