package ops

import (
	"errors"
	"fmt"
)

// Dispatch errors.
var (
	// ErrUnknownTargetType is returned when no plugin handles a target's type.
	ErrUnknownTargetType = errors.New("unknown target type")

	// ErrNotInWorkspace is returned for files outside the workspace root.
	ErrNotInWorkspace = errors.New("file is not part of the workspace")

	// ErrTargetNotFound is returned when a package names an unknown target.
	ErrTargetNotFound = errors.New("target not found")

	// ErrNoTargets is returned when a package operation has no target.
	ErrNoTargets = errors.New("no targets selected")
)

// OpError records a failed operation against one target.
type OpError struct {
	Op     Op
	Target string
	Path   string
	Err    error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Target, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
