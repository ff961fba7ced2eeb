// Package host owns the workspaces of one process: the shared plugin
// registry, the change guard every workspace routes file changes through,
// and the file system watcher feeding it.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/deployd/internal/changeguard"
	"github.com/dshills/deployd/internal/glob"
	"github.com/dshills/deployd/internal/ops"
	"github.com/dshills/deployd/internal/plugin"
	"github.com/dshills/deployd/internal/plugin/batch"
	"github.com/dshills/deployd/internal/plugin/dryrun"
	"github.com/dshills/deployd/internal/plugin/script"
	"github.com/dshills/deployd/internal/retry"
	"github.com/dshills/deployd/internal/watcher"
	"github.com/dshills/deployd/internal/workspace"
)

// Host errors.
var (
	ErrFolderExists   = errors.New("folder already registered")
	ErrFolderNotFound = errors.New("folder not registered")
	ErrClosed         = errors.New("host is closed")
)

// Host manages a set of workspaces.
type Host struct {
	logger       *slog.Logger
	reloadPolicy retry.Policy
	changePolicy retry.Policy
	debounce     time.Duration
	watchIgnore  []string
	store        workspace.Store
	extra        []plugin.Plugin

	registry   *plugin.Registry
	guard      *changeguard.Guard
	dispatcher *ops.Dispatcher
	siblings   *workspace.Set

	mu       sync.Mutex
	watcher  watcher.Watcher
	watching []*unwatcher
	closed   bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the output sink shared by all workspaces.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithReloadPolicy bounds configuration reload retries.
func WithReloadPolicy(p retry.Policy) Option {
	return func(h *Host) {
		h.reloadPolicy = p
	}
}

// WithChangePolicy bounds change notification retries.
func WithChangePolicy(p retry.Policy) Option {
	return func(h *Host) {
		h.changePolicy = p
	}
}

// WithDebounce sets the coalescing window of the file watcher.
func WithDebounce(d time.Duration) Option {
	return func(h *Host) {
		h.debounce = d
	}
}

// WithWatchIgnore replaces the patterns the file watcher never descends into
// or reports, in every folder.
func WithWatchIgnore(patterns ...string) Option {
	return func(h *Host) {
		h.watchIgnore = patterns
	}
}

// WithStore replaces the settings store.
func WithStore(store workspace.Store) Option {
	return func(h *Host) {
		h.store = store
	}
}

// WithPlugin registers an additional target type.
func WithPlugin(p plugin.Plugin) Option {
	return func(h *Host) {
		h.extra = append(h.extra, p)
	}
}

// New creates a host with the built-in target types registered.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		logger:       slog.Default(),
		reloadPolicy: retry.DefaultPolicy(),
		changePolicy: retry.DefaultPolicy(),
		debounce:     watcher.DefaultConfig().DebounceDelay,
		watchIgnore:  watcher.DefaultConfig().IgnorePatterns,
		siblings:     workspace.NewSet(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registry = plugin.NewRegistry()
	builtins := []plugin.Plugin{
		dryrun.New(),
		batch.New(h.registry),
		script.New(),
	}
	for _, p := range append(builtins, h.extra...) {
		if err := h.registry.Register(p); err != nil {
			return nil, err
		}
	}

	h.guard = changeguard.New(
		changeguard.WithRetryPolicy(h.changePolicy),
		changeguard.WithLogger(h.logger),
	)
	h.dispatcher = ops.NewDispatcher(h.registry, ops.WithLogger(h.logger))
	return h, nil
}

// Registry returns the shared plugin registry.
func (h *Host) Registry() *plugin.Registry {
	return h.registry
}

// Guard returns the shared change guard.
func (h *Host) Guard() *changeguard.Guard {
	return h.guard
}

// workspaceContext returns the workspace context shared by all folders.
func (h *Host) workspaceContext() workspace.Context {
	return workspace.Context{
		Plugins:      h.registry,
		Handlers:     h.dispatcher,
		Guard:        h.guard,
		Store:        h.store,
		Siblings:     h.siblings,
		Logger:       h.logger,
		ReloadPolicy: h.reloadPolicy,
	}
}

// AddFolder registers and initializes a workspace for path. If the host is
// watching, the folder is watched too.
func (h *Host) AddFolder(ctx context.Context, path string) (*workspace.Workspace, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := h.siblings.Get(path); exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrFolderExists, path)
	}
	ws, err := workspace.New(path, h.workspaceContext())
	w := h.watcher
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := ws.Initialize(ctx); err != nil {
		_ = ws.Dispose()
		return nil, err
	}

	if w != nil {
		if err := h.watchFolder(w, ws); err != nil {
			h.logger.Warn("watch folder failed", "root", ws.Root(), "error", err)
		}
	}
	return ws, nil
}

// AddWorkspaceFile registers every folder of a .code-workspace file.
func (h *Host) AddWorkspaceFile(ctx context.Context, path string) ([]*workspace.Workspace, error) {
	file, err := LoadWorkspaceFile(path)
	if err != nil {
		return nil, err
	}

	var added []*workspace.Workspace
	var errs []error
	for _, folder := range file.FolderPaths(path) {
		ws, err := h.AddFolder(ctx, folder)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		added = append(added, ws)
	}
	return added, errors.Join(errs...)
}

// RemoveFolder disposes the workspace rooted at path.
func (h *Host) RemoveFolder(path string) error {
	ws, ok := h.siblings.Get(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, path)
	}
	return ws.Dispose()
}

// Workspaces returns the registered workspaces in registration order.
func (h *Host) Workspaces() []*workspace.Workspace {
	return h.siblings.All()
}

// Workspace returns the workspace rooted at path.
func (h *Host) Workspace(path string) (*workspace.Workspace, bool) {
	return h.siblings.Get(path)
}

// OwnerOf returns the workspace an absolute path belongs to.
func (h *Host) OwnerOf(path string) (*workspace.Workspace, bool) {
	return h.siblings.Owner(path)
}

// HandleEvent routes a watcher event to the owning workspace through the
// change guard. Events outside every workspace are ignored.
func (h *Host) HandleEvent(ctx context.Context, ev watcher.Event) {
	kind, ok := ev.Kind()
	if !ok {
		return
	}

	ws, ok := h.OwnerOf(ev.Path)
	if !ok {
		return
	}

	outcome, err := ws.HandleChange(ctx, ev.Path, kind, true)
	if err != nil {
		ws.Logger().Error("change handling failed",
			"path", ev.Path,
			"kind", kind.String(),
			"error", err,
		)
		return
	}
	ws.Logger().Debug("change routed",
		"path", ev.Path,
		"kind", kind.String(),
		"outcome", outcome.String(),
	)
}

// Watch watches every registered folder and routes changes until ctx is
// done. Folders added while watching are watched as well.
func (h *Host) Watch(ctx context.Context) error {
	fsw, err := watcher.NewFSNotifyWatcher(watcher.WithIgnorePatterns(h.watchIgnore))
	if err != nil {
		return err
	}
	w := watcher.NewDebouncedWatcher(fsw, watcher.WithDebounceDelay(h.debounce))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = w.Close()
		return ErrClosed
	}
	if h.watcher != nil {
		h.mu.Unlock()
		_ = w.Close()
		return errors.New("host is already watching")
	}
	h.watcher = w
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.watcher = nil
		released := h.watching
		h.watching = nil
		h.mu.Unlock()

		for _, u := range released {
			u.ws.Disown(u)
		}
		_ = w.Close()
	}()

	for _, ws := range h.Workspaces() {
		if err := h.watchFolder(w, ws); err != nil {
			h.logger.Warn("watch folder failed", "root", ws.Root(), "error", err)
		}
	}

	h.logger.Info("watching", "folders", h.siblings.Len())
	watcher.Run(ctx, w,
		func(ev watcher.Event) {
			go h.HandleEvent(ctx, ev)
		},
		func(err error) {
			h.logger.Warn("watcher error", "error", err)
		},
	)
	return ctx.Err()
}

// watchFolder watches ws recursively, hiding the paths its configuration
// ignores; disposing ws stops watching it.
func (h *Host) watchFolder(w watcher.Watcher, ws *workspace.Workspace) error {
	filter := func(rel string) bool {
		return glob.MatchAny(ws.Ignore(), rel)
	}
	if err := w.WatchRecursive(ws.Root(), filter); err != nil {
		return err
	}

	u := &unwatcher{w: w, ws: ws}
	if err := ws.Own(u); err != nil {
		return err
	}

	h.mu.Lock()
	current := h.watcher == w
	if current {
		h.watching = append(h.watching, u)
	}
	h.mu.Unlock()

	if !current {
		ws.Disown(u)
	}
	return nil
}

// unwatcher stops watching a workspace root when closed.
type unwatcher struct {
	w  watcher.Watcher
	ws *workspace.Workspace
}

func (u *unwatcher) Close() error {
	err := u.w.Unwatch(u.ws.Root())
	if errors.Is(err, watcher.ErrNotWatching) || errors.Is(err, watcher.ErrWatcherClosed) {
		return nil
	}
	return err
}

// Close disposes every workspace. A running Watch returns once its context
// is done.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	var errs []error
	for _, ws := range h.Workspaces() {
		if err := ws.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
