// Package changeguard serializes the handling of file change notifications
// per path.
//
// File watchers fire bursts of overlapping events for one file (an editor
// save is often a write followed by a chmod). A Guard makes sure at most one
// handling pass runs for a path at any time across every workspace sharing
// the guard. A notification that arrives while its path is busy is retried
// after a short delay, or dropped when the caller asks for no retry.
//
// Retries are not FIFO: a later event may be processed with a kind that is
// already stale. Handlers must tolerate that.
package changeguard

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dshills/deployd/internal/retry"
)

// Kind is the type of a file change.
type Kind int

const (
	// Created indicates a file was created.
	Created Kind = iota
	// Changed indicates a file was modified.
	Changed
	// Deleted indicates a file was removed.
	Deleted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Handler runs the kind-specific handling for one path.
type Handler interface {
	OnCreated(ctx context.Context, path string) error
	OnChanged(ctx context.Context, path string) error
	OnDeleted(ctx context.Context, path string) error
}

// Outcome describes what Handle did with a notification.
type Outcome int

const (
	// Handled means the handling pass ran (successfully or not).
	Handled Outcome = iota
	// Deferred means the path was busy and a retry was scheduled.
	Deferred
	// Dropped means the notification was discarded: busy without retry,
	// retries exhausted or context cancelled.
	Dropped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case Deferred:
		return "deferred"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Guard is the registry of in-flight change passes, keyed by absolute path.
type Guard struct {
	mu      sync.Mutex
	pending map[string]Kind

	policy retry.Policy
	logger *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithRetryPolicy sets the busy-retry schedule.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Guard) {
		g.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates an empty guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		pending: make(map[string]Kind),
		policy:  retry.DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key normalizes path to the registry key.
func Key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Handle runs h for the change unless a pass for the same path is in flight.
//
// When the path is busy, retry=true schedules the same (path, kind) again
// after the policy delay and returns Deferred; retry=false returns Dropped.
// The registry entry is released when the pass ends, even if h fails or
// panics. The error is the one returned by h for a Handled pass.
func (g *Guard) Handle(ctx context.Context, h Handler, path string, kind Kind, retry bool) (Outcome, error) {
	return g.handle(ctx, h, Key(path), kind, retry, 0)
}

func (g *Guard) handle(ctx context.Context, h Handler, key string, kind Kind, retry bool, attempt int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Dropped, err
	}

	if !g.acquire(key, kind) {
		if !retry {
			g.logger.Debug("change dropped, path busy", "path", key, "kind", kind)
			return Dropped, nil
		}
		return g.scheduleRetry(ctx, h, key, kind, attempt+1), nil
	}
	defer g.release(key)

	err := g.run(ctx, h, key, kind)
	if err != nil {
		g.logger.Warn("change handling failed",
			"path", key,
			"kind", kind,
			"error", err,
		)
	}
	return Handled, err
}

func (g *Guard) scheduleRetry(ctx context.Context, h Handler, key string, kind Kind, attempt int) Outcome {
	err := g.policy.Schedule(ctx, attempt, func(n int) {
		_, _ = g.handle(ctx, h, key, kind, true, n)
	})
	if err != nil {
		g.logger.Warn("change dropped after retries",
			"path", key,
			"kind", kind,
			"attempt", attempt,
			"error", err,
		)
		return Dropped
	}
	return Deferred
}

// run dispatches to the kind-specific hook and converts a panic to an error.
func (g *Guard) run(ctx context.Context, h Handler, key string, kind Kind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler for %s panicked: %v", kind, key, r)
		}
	}()

	switch kind {
	case Created:
		return h.OnCreated(ctx, key)
	case Changed:
		return h.OnChanged(ctx, key)
	case Deleted:
		return h.OnDeleted(ctx, key)
	default:
		return fmt.Errorf("unknown change kind %d for %s", int(kind), key)
	}
}

func (g *Guard) acquire(key string, kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.pending[key]; busy {
		return false
	}
	g.pending[key] = kind
	return true
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, key)
}

// Pending returns the kind being handled for path, if any.
func (g *Guard) Pending(path string) (Kind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k, ok := g.pending[Key(path)]
	return k, ok
}

// Len returns the number of paths being handled.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// HandlerFuncs adapts plain functions to a Handler. Nil hooks do nothing.
type HandlerFuncs struct {
	Created func(ctx context.Context, path string) error
	Changed func(ctx context.Context, path string) error
	Deleted func(ctx context.Context, path string) error
}

// OnCreated implements Handler.
func (f HandlerFuncs) OnCreated(ctx context.Context, path string) error {
	if f.Created == nil {
		return nil
	}
	return f.Created(ctx, path)
}

// OnChanged implements Handler.
func (f HandlerFuncs) OnChanged(ctx context.Context, path string) error {
	if f.Changed == nil {
		return nil
	}
	return f.Changed(ctx, path)
}

// OnDeleted implements Handler.
func (f HandlerFuncs) OnDeleted(ctx context.Context, path string) error {
	if f.Deleted == nil {
		return nil
	}
	return f.Deleted(ctx, path)
}
