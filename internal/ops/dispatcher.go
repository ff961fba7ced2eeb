package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/plugin"
)

// Dispatcher implements Handlers on top of a plugin registry.
type Dispatcher struct {
	registry *plugin.Registry
	logger   *slog.Logger
	newID    func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for operations without a workspace logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithIDGenerator replaces the operation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// NewDispatcher creates a dispatcher resolving target types in registry.
func NewDispatcher(registry *plugin.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ Handlers = (*Dispatcher)(nil)

// DeployFileTo deploys one file to target.
func (d *Dispatcher) DeployFileTo(ctx context.Context, ws Workspace, file string, target entity.Target) error {
	return d.dispatch(ctx, OpDeploy, ws, []string{file}, target)
}

// DeployPackage deploys the package's files to targets, or to the package's
// own targets when none are given.
func (d *Dispatcher) DeployPackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error {
	return d.dispatchPackage(ctx, OpDeploy, ws, pkg, targets)
}

// PullFileFrom pulls one file from target.
func (d *Dispatcher) PullFileFrom(ctx context.Context, ws Workspace, file string, target entity.Target) error {
	return d.dispatch(ctx, OpPull, ws, []string{file}, target)
}

// PullFilesFrom pulls several files from target in one operation.
func (d *Dispatcher) PullFilesFrom(ctx context.Context, ws Workspace, files []string, target entity.Target) error {
	return d.dispatch(ctx, OpPull, ws, files, target)
}

// PullPackage pulls the package's files from targets.
func (d *Dispatcher) PullPackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error {
	return d.dispatchPackage(ctx, OpPull, ws, pkg, targets)
}

// DeleteFileIn deletes one file in target.
func (d *Dispatcher) DeleteFileIn(ctx context.Context, ws Workspace, file string, target entity.Target) error {
	return d.dispatch(ctx, OpDelete, ws, []string{file}, target)
}

// DeletePackage deletes the package's files in targets.
func (d *Dispatcher) DeletePackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error {
	return d.dispatchPackage(ctx, OpDelete, ws, pkg, targets)
}

// dispatchPackage enumerates the package files once and runs op against
// every selected target. Failures of one target do not stop the others.
func (d *Dispatcher) dispatchPackage(ctx context.Context, op Op, ws Workspace, pkg entity.Package, targets []entity.Target) error {
	if len(targets) == 0 {
		resolved, err := packageTargets(ws, pkg)
		if err != nil {
			return &OpError{Op: op, Target: pkg.Name(), Err: err}
		}
		targets = resolved
	}
	if len(targets) == 0 {
		return &OpError{Op: op, Target: pkg.Name(), Err: ErrNoTargets}
	}

	files, err := PackageFiles(ctx, ws.Root(), pkg, ws.Ignore())
	if err != nil {
		return &OpError{Op: op, Target: pkg.Name(), Path: ws.Root(), Err: err}
	}

	var errs []error
	for _, target := range targets {
		if err := d.dispatch(ctx, op, ws, files, target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// packageTargets resolves the package's "targets" names.
func packageTargets(ws Workspace, pkg entity.Package) ([]entity.Target, error) {
	names := pkg.TargetNames()
	targets := make([]entity.Target, 0, len(names))
	for _, name := range names {
		t, ok := ws.TargetByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// dispatch runs one operation against one target.
func (d *Dispatcher) dispatch(ctx context.Context, op Op, ws Workspace, files []string, target entity.Target) error {
	abs := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(ws.Root(), f)
		}
		if !ws.IsPathOf(f) {
			return &OpError{Op: op, Target: target.Name(), Path: f, Err: ErrNotInWorkspace}
		}
		abs = append(abs, filepath.Clean(f))
	}

	p, ok := d.registry.Lookup(target.Type())
	if !ok {
		return &OpError{
			Op:     op,
			Target: target.Name(),
			Err:    fmt.Errorf("%w: %q", ErrUnknownTargetType, target.Type()),
		}
	}

	run, err := handler(op, p)
	if err != nil {
		return &OpError{Op: op, Target: target.Name(), Err: err}
	}

	req := plugin.Request{
		ID:        d.newID(),
		Workspace: ws,
		Target:    target,
		Files:     abs,
	}

	log := d.logger
	if l := ws.Logger(); l != nil {
		log = l
	}
	log = log.With("op", string(op), "id", req.ID, "target", target.Name(), "type", target.Type())

	start := time.Now()
	log.Info("operation started", "files", len(abs))

	if err := run(ctx, req); err != nil {
		log.Error("operation failed", "error", err, "duration", time.Since(start))
		return &OpError{Op: op, Target: target.Name(), Path: pathOf(ws, abs), Err: err}
	}

	log.Info("operation finished", "duration", time.Since(start))
	return nil
}

// handler returns the plugin method implementing op.
func handler(op Op, p plugin.Plugin) (func(context.Context, plugin.Request) error, error) {
	switch op {
	case OpDeploy:
		return p.Deploy, nil
	case OpPull:
		if puller, ok := p.(plugin.Puller); ok {
			return puller.Pull, nil
		}
	case OpDelete:
		if deleter, ok := p.(plugin.Deleter); ok {
			return deleter.Delete, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %q", plugin.ErrNotSupported, op, p.Type())
}

// pathOf names the file of a single-file operation.
func pathOf(ws Workspace, files []string) string {
	if len(files) != 1 {
		return ""
	}
	if rel, err := ws.RelativePath(files[0]); err == nil {
		return rel
	}
	return files[0]
}
