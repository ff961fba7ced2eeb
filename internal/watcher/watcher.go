// Package watcher reports file system changes below workspace roots.
//
// FSNotifyWatcher watches directories recursively with fsnotify and skips
// ignored paths. DebouncedWatcher wraps any Watcher and reduces a burst of
// events for one path (an editor save often produces several) to the net
// change the burst made.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/deployd/internal/changeguard"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrNotWatching   = errors.New("path is not being watched")
	ErrPathNotExist  = errors.New("path does not exist")
)

func errDropped(path string, op Op) error {
	return fmt.Errorf("event channel full, dropping %s %s", op, path)
}

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred. After debouncing it is the net
	// effect of the burst.
	Op Op

	// Timestamp is when the (last) event occurred.
	Timestamp time.Time
}

// Kind maps the event to a change kind. Removal wins over creation, which
// wins over writes; a pure chmod has no kind.
func (e Event) Kind() (changeguard.Kind, bool) {
	switch {
	case e.Op.Has(OpRemove), e.Op.Has(OpRename):
		return changeguard.Deleted, true
	case e.Op.Has(OpCreate):
		return changeguard.Created, true
	case e.Op.Has(OpWrite):
		return changeguard.Changed, true
	default:
		return 0, false
	}
}

// Filter reports whether a path, relative to the root it was found under,
// is left unreported.
type Filter func(rel string) bool

// Watcher monitors file system changes below recursive roots.
type Watcher interface {
	// WatchRecursive starts watching a directory and all subdirectories.
	// Roots may nest and may be watched more than once; each call needs a
	// matching Unwatch. filter may be nil.
	WatchRecursive(path string, filter Filter) error

	// Unwatch releases one WatchRecursive of path. Directories stay
	// watched while another root still covers them.
	Unwatch(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config holds watcher configuration options.
type Config struct {
	// DebounceDelay is the coalescing window of a DebouncedWatcher.
	// Default: 100ms
	DebounceDelay time.Duration

	// BufferSize is the size of the event and error channels.
	// Default: 256
	BufferSize int

	// IgnorePatterns are globs for paths never watched or reported, under
	// any root. A pattern without a slash matches any path segment.
	// Default: .git, node_modules
	IgnorePatterns []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:  100 * time.Millisecond,
		BufferSize:     256,
		IgnorePatterns: []string{".git", "node_modules"},
	}
}

// WatcherOption configures a watcher.
type WatcherOption func(*Config)

// WithDebounceDelay sets the debounce delay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(c *Config) {
		c.DebounceDelay = d
	}
}

// WithIgnorePatterns replaces the ignore patterns.
func WithIgnorePatterns(patterns []string) WatcherOption {
	return func(c *Config) {
		c.IgnorePatterns = patterns
	}
}

func newConfig(opts []WatcherOption) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultConfig().DebounceDelay
	}
	return config
}

// Run delivers events and errors of w to the handlers until ctx is done or
// the watcher is closed.
func Run(ctx context.Context, w Watcher, onEvent func(Event), onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events():
			if !ok {
				return
			}
			onEvent(event)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
