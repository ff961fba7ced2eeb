// Package workspace provides the per-folder deploy unit: it owns the folder's
// configuration snapshot, materializes its packages and targets, forwards
// deploy, pull and delete requests to the operation handlers, and reacts to
// file changes routed through the shared change guard.
//
// Lifecycle:
//
//	ws, err := workspace.New("/proj", hostContext)
//	if err != nil {
//	    return err
//	}
//	defer ws.Dispose()
//
//	if err := ws.Initialize(ctx); err != nil {
//	    return err
//	}
//	err = ws.DeployPackage(ctx, ws.Packages()[0])
package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/deployd/internal/changeguard"
	"github.com/dshills/deployd/internal/config"
	"github.com/dshills/deployd/internal/config/loader"
	"github.com/dshills/deployd/internal/config/notify"
	"github.com/dshills/deployd/internal/config/schema"
	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/ops"
	"github.com/dshills/deployd/internal/plugin"
	"github.com/dshills/deployd/internal/retry"
)

// TopicConfigReloaded is the topic of reload notifications.
const TopicConfigReloaded = "config-reloaded"

// Store is the backing store of folder settings.
type Store interface {
	config.Source

	// IsSettingsFile reports whether path is one of folder's settings files.
	IsSettingsFile(folder, path string) bool
}

// Context holds what a host shares with all of its workspaces.
type Context struct {
	// Plugins resolves target types.
	Plugins *plugin.Registry

	// Handlers performs operations. Defaults to an ops.Dispatcher over Plugins.
	Handlers ops.Handlers

	// Guard deduplicates change notifications across workspaces.
	Guard *changeguard.Guard

	// Store loads folder settings. Defaults to loader.NewStore().
	Store Store

	// Siblings is the list of workspaces of the host.
	Siblings *Set

	// Logger is the output sink.
	Logger *slog.Logger

	// ReloadPolicy bounds reload retries while a reload is in flight.
	ReloadPolicy retry.Policy
}

// withDefaults fills in the zero fields.
func (c Context) withDefaults() Context {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Plugins == nil {
		c.Plugins = plugin.NewRegistry()
	}
	if c.Handlers == nil {
		c.Handlers = ops.NewDispatcher(c.Plugins, ops.WithLogger(c.Logger))
	}
	if c.Guard == nil {
		c.Guard = changeguard.New(changeguard.WithLogger(c.Logger))
	}
	if c.Store == nil {
		c.Store = loader.NewStore()
	}
	if c.Siblings == nil {
		c.Siblings = NewSet()
	}
	return c
}

// ReloadEvent is published after every configuration swap.
type ReloadEvent struct {
	Workspace *Workspace
	New       *config.Config
	Old       *config.Config
}

// Workspace is the deploy unit of one folder.
type Workspace struct {
	folder Folder
	ctx    Context
	logger *slog.Logger

	manager  *config.Manager
	reloaded *notify.Notifier[ReloadEvent]

	initializing atomic.Bool
	initialized  atomic.Bool
	disposed     atomic.Bool

	mu          sync.Mutex
	disposables []io.Closer
}

// New creates a workspace for the folder at path and adds it to the
// context's sibling set. Its configuration stays nil until Initialize.
func New(path string, c Context) (*Workspace, error) {
	folder, err := NewFolder(path)
	if err != nil {
		return nil, err
	}

	c = c.withDefaults()
	w := &Workspace{
		folder: folder,
		ctx:    c,
		logger: c.Logger.With("workspace", folder.Name),
	}

	w.reloaded = notify.New[ReloadEvent](TopicConfigReloaded, notify.WithLogger(w.logger))
	w.manager = config.NewManager(folder.Path, c.Store,
		config.WithRetryPolicy(c.ReloadPolicy),
		config.WithLogger(w.logger),
		config.WithPublisher(w.publish),
	)

	c.Siblings.add(w)
	return w, nil
}

// initPollInterval is how often Initialize checks a reload it had to wait for.
const initPollInterval = 10 * time.Millisecond

// Initialize performs the first configuration reload. It succeeds once. If
// another reload is in flight it waits for that one to finish; when ctx is
// done first, the workspace stays uninitialized and Initialize may be
// called again.
func (w *Workspace) Initialize(ctx context.Context) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	if !w.initializing.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	outcome, err := w.firstReload(ctx)
	if err != nil {
		w.initializing.Store(false)
		return err
	}
	w.initialized.Store(true)

	w.logger.Info("workspace initialized",
		"root", w.folder.Path,
		"outcome", outcome.String(),
		"packages", len(w.Packages()),
		"targets", len(w.Targets()),
	)
	return nil
}

// firstReload reloads until a snapshot exists, either its own or one
// published by a concurrent reload.
func (w *Workspace) firstReload(ctx context.Context) (config.Outcome, error) {
	ticker := time.NewTicker(initPollInterval)
	defer ticker.Stop()

	for {
		if w.disposed.Load() {
			return config.Skipped, ErrDisposed
		}
		if err := ctx.Err(); err != nil {
			return config.Skipped, err
		}

		outcome := w.manager.Reload(ctx, false)
		if outcome == config.Reloaded || w.manager.Config() != nil {
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return config.Skipped, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Dispose releases every owned resource and detaches every reload observer.
// A reload or operation already running is not aborted. Later calls are
// no-ops.
func (w *Workspace) Dispose() error {
	if !w.disposed.CompareAndSwap(false, true) {
		return nil
	}

	w.reloaded.Close()
	_ = w.manager.Close()
	w.ctx.Siblings.remove(w)

	w.mu.Lock()
	disposables := w.disposables
	w.disposables = nil
	w.mu.Unlock()

	var errs []error
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := disposables[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	w.logger.Debug("workspace disposed", "root", w.folder.Path)
	return errors.Join(errs...)
}

// Own registers a resource closed by Dispose. Owning after disposal closes c
// immediately and returns ErrDisposed.
func (w *Workspace) Own(c io.Closer) error {
	w.mu.Lock()
	if !w.disposed.Load() {
		w.disposables = append(w.disposables, c)
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	_ = c.Close()
	return ErrDisposed
}

// Disown removes a resource registered with Own without closing it. It
// reports whether c was owned. c must be comparable.
func (w *Workspace) Disown(c io.Closer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, owned := range w.disposables {
		if owned == c {
			w.disposables = append(w.disposables[:i], w.disposables[i+1:]...)
			return true
		}
	}
	return false
}

// IsDisposed reports whether Dispose was called.
func (w *Workspace) IsDisposed() bool {
	return w.disposed.Load()
}

// IsInitialized reports whether the first reload has completed.
func (w *Workspace) IsInitialized() bool {
	return w.initialized.Load()
}

// IsReloadingConfig reports whether a reload is in flight.
func (w *Workspace) IsReloadingConfig() bool {
	return w.manager.IsReloading()
}

// Folder returns the folder reference.
func (w *Workspace) Folder() Folder {
	return w.folder
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.folder.Path
}

// Name returns the folder display name.
func (w *Workspace) Name() string {
	return w.folder.Name
}

// Logger returns the workspace output sink.
func (w *Workspace) Logger() *slog.Logger {
	return w.logger
}

// Context returns the shared host context.
func (w *Workspace) Context() Context {
	return w.ctx
}

// Siblings returns the other workspaces of the host.
func (w *Workspace) Siblings() []*Workspace {
	all := w.ctx.Siblings.All()
	result := make([]*Workspace, 0, len(all))
	for _, s := range all {
		if s != w {
			result = append(result, s)
		}
	}
	return result
}

// Config returns the current snapshot, or nil before the first reload.
func (w *Workspace) Config() *config.Config {
	return w.manager.Config()
}

// ReloadConfig reloads the folder settings. See config.Manager.Reload.
func (w *Workspace) ReloadConfig(ctx context.Context, retry bool) config.Outcome {
	if w.disposed.Load() {
		return config.Skipped
	}
	return w.manager.Reload(ctx, retry)
}

// OnConfigReloaded subscribes to reload events. The subscription can be
// handed to Own or released with Unsubscribe.
func (w *Workspace) OnConfigReloaded(observer notify.Observer[ReloadEvent]) *notify.Subscription {
	return w.reloaded.Subscribe(observer)
}

// publish delivers a swapped snapshot to the reload observers.
func (w *Workspace) publish(next, prev *config.Config) {
	if w.disposed.Load() {
		return
	}
	w.warnInvalid(next)
	if failed := w.reloaded.Notify(ReloadEvent{Workspace: w, New: next, Old: prev}); failed > 0 {
		w.logger.Warn("reload observers failed", "count", failed)
	}
}

// Validate checks the current settings against the deploy schema.
// Invalid entries are still materialized where possible.
func (w *Workspace) Validate() error {
	return schema.Validate(w.Config().Raw())
}

func (w *Workspace) warnInvalid(cfg *config.Config) {
	var verrs *schema.ValidationErrors
	if !errors.As(schema.Validate(cfg.Raw()), &verrs) {
		return
	}
	for _, e := range verrs.Errors {
		w.logger.Warn("invalid setting", "source", cfg.Source(), "path", e.Path, "problem", e.Message)
	}
}

// Packages materializes the packages of the current snapshot.
func (w *Workspace) Packages() []entity.Package {
	return entity.Packages(w.Config().Packages(), w)
}

// Targets materializes the targets of the current snapshot.
func (w *Workspace) Targets() []entity.Target {
	return entity.Targets(w.Config().Targets(), w)
}

// PackageByName returns the first package with the given display name.
func (w *Workspace) PackageByName(name string) (entity.Package, bool) {
	for _, p := range w.Packages() {
		if p.Name() == name {
			return p, true
		}
	}
	return entity.Package{}, false
}

// TargetByName returns the first target with the given display name.
func (w *Workspace) TargetByName(name string) (entity.Target, bool) {
	for _, t := range w.Targets() {
		if t.Name() == name {
			return t, true
		}
	}
	return entity.Target{}, false
}

// Ignore returns the global ignore globs of the current snapshot.
func (w *Workspace) Ignore() []string {
	return w.Config().Ignore()
}

// IsPathOf reports whether path lies in the workspace. Relative paths are
// resolved against the root; the root itself belongs to the workspace.
func (w *Workspace) IsPathOf(path string) bool {
	abs, ok := w.resolve(path)
	return ok && isSubPath(w.folder.Path, abs)
}

// RelativePath returns path relative to the root, using forward slashes.
func (w *Workspace) RelativePath(path string) (string, error) {
	abs, ok := w.resolve(path)
	if !ok || !isSubPath(w.folder.Path, abs) {
		return "", ops.ErrNotInWorkspace
	}

	rel, err := filepath.Rel(w.folder.Path, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// resolve makes path absolute against the root.
func (w *Workspace) resolve(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.folder.Path, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}
