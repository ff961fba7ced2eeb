package config

import "errors"

// ErrNoSource indicates a manager was built without a backing store.
var ErrNoSource = errors.New("configuration source is nil")
