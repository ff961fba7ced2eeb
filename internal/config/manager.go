package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dshills/deployd/internal/retry"
)

// Source is the backing store a Manager loads from.
// Load returns nil, nil when the folder has no settings.
type Source interface {
	Load(ctx context.Context, folder string) (map[string]any, error)
}

// Locator is implemented by sources that can name the file backing a folder.
type Locator interface {
	Source(folder string) string
}

// PublishFunc receives every swapped snapshot together with the previous one.
type PublishFunc func(next, prev *Config)

// Outcome describes what a Reload call did.
type Outcome int

const (
	// Reloaded means a new snapshot was loaded and published.
	Reloaded Outcome = iota
	// Deferred means a reload was in flight and a retry was scheduled.
	Deferred
	// Skipped means nothing was loaded: busy without retry, retries
	// exhausted, context cancelled or manager closed.
	Skipped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Reloaded:
		return "reloaded"
	case Deferred:
		return "deferred"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Manager owns the configuration snapshot of one folder.
type Manager struct {
	folder  string
	source  Source
	policy  retry.Policy
	logger  *slog.Logger
	publish PublishFunc

	current   atomic.Pointer[Config]
	reloading atomic.Bool
	closed    atomic.Bool
	reloads   atomic.Int64

	// stop cancels scheduled retries on Close.
	stop       context.Context
	cancelStop context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRetryPolicy sets the busy-retry schedule.
func WithRetryPolicy(p retry.Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPublisher sets the function called after every snapshot swap.
func WithPublisher(fn PublishFunc) ManagerOption {
	return func(m *Manager) {
		m.publish = fn
	}
}

// NewManager creates a manager for folder. The snapshot stays nil until the
// first successful Reload.
func NewManager(folder string, source Source, opts ...ManagerOption) *Manager {
	m := &Manager{
		folder: folder,
		source: source,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stop, m.cancelStop = context.WithCancel(context.Background())
	return m
}

// Folder returns the folder the manager is scoped to.
func (m *Manager) Folder() string {
	return m.folder
}

// Config returns the current snapshot, or nil before the first reload.
func (m *Manager) Config() *Config {
	return m.current.Load()
}

// IsReloading reports whether a reload is in flight.
func (m *Manager) IsReloading() bool {
	return m.reloading.Load()
}

// Reloads returns the number of completed reloads.
func (m *Manager) Reloads() int64 {
	return m.reloads.Load()
}

// Reload loads the folder's settings and publishes the new snapshot.
//
// If another reload is in flight, retry=true schedules a new attempt after the
// policy delay and returns Deferred; retry=false returns Skipped without
// loading. A failed load publishes an empty configuration.
func (m *Manager) Reload(ctx context.Context, retry bool) Outcome {
	return m.reload(ctx, retry, 0)
}

func (m *Manager) reload(ctx context.Context, retry bool, attempt int) Outcome {
	if m.closed.Load() || ctx.Err() != nil {
		return Skipped
	}

	if !m.reloading.CompareAndSwap(false, true) {
		if !retry {
			return Skipped
		}
		return m.scheduleRetry(ctx, attempt+1)
	}
	defer m.reloading.Store(false)

	next := m.load(ctx)

	prev := m.current.Swap(next)
	m.reloads.Add(1)

	m.logger.Debug("configuration reloaded",
		"folder", m.folder,
		"source", next.Source(),
		"attempt", attempt,
	)

	if m.publish != nil {
		m.safePublish(next, prev)
	}
	return Reloaded
}

// scheduleRetry schedules another reload attempt.
func (m *Manager) scheduleRetry(ctx context.Context, attempt int) Outcome {
	stopCtx, cancel := mergeDone(ctx, m.stop)
	err := m.policy.Schedule(stopCtx, attempt, func(n int) {
		defer cancel()
		m.reload(ctx, true, n)
	})
	if err != nil {
		cancel()
		m.logger.Warn("configuration reload dropped",
			"folder", m.folder,
			"attempt", attempt,
			"error", err,
		)
		return Skipped
	}
	return Deferred
}

// load reads the section, falling back to an empty snapshot on failure.
func (m *Manager) load(ctx context.Context) (cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("configuration load panicked", "folder", m.folder, "panic", r)
			cfg = Empty()
		}
	}()

	if m.source == nil {
		m.logger.Error("configuration load failed", "folder", m.folder, "error", ErrNoSource)
		return Empty()
	}

	raw, err := m.source.Load(ctx, m.folder)
	if err != nil {
		m.logger.Error("configuration load failed", "folder", m.folder, "error", err)
		return Empty()
	}

	var source string
	if loc, ok := m.source.(Locator); ok {
		source = loc.Source(m.folder)
	}
	return New(raw, source)
}

// safePublish calls the publisher and contains a panic so the reload itself
// still counts as done.
func (m *Manager) safePublish(next, prev *Config) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("configuration publish panicked",
				"folder", m.folder,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	m.publish(next, prev)
}

// Close stops scheduled retries. A reload already running finishes normally.
func (m *Manager) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.cancelStop()
	}
	return nil
}

// mergeDone returns a context cancelled when either a or b is done.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
