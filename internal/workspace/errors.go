package workspace

import "errors"

// Common errors.
var (
	ErrInvalidPath        = errors.New("invalid folder path")
	ErrDisposed           = errors.New("workspace is disposed")
	ErrAlreadyInitialized = errors.New("workspace is already initialized")
)
