package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/deployd/internal/changeguard"
	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/glob"
	"github.com/dshills/deployd/internal/ops"
)

var _ changeguard.Handler = (*Workspace)(nil)

// HandleChange routes a change notification through the shared guard.
func (w *Workspace) HandleChange(ctx context.Context, path string, kind changeguard.Kind, retry bool) (changeguard.Outcome, error) {
	if w.disposed.Load() {
		return changeguard.Dropped, ErrDisposed
	}
	return w.ctx.Guard.Handle(ctx, w, path, kind, retry)
}

// OnCreated implements changeguard.Handler.
func (w *Workspace) OnCreated(ctx context.Context, path string) error {
	return w.onChange(ctx, path, false)
}

// OnChanged implements changeguard.Handler.
func (w *Workspace) OnChanged(ctx context.Context, path string) error {
	return w.onChange(ctx, path, false)
}

// OnDeleted implements changeguard.Handler.
func (w *Workspace) OnDeleted(ctx context.Context, path string) error {
	return w.onChange(ctx, path, true)
}

// onChange reloads on settings changes and otherwise runs deploy-on-change
// or delete-on-remove for the packages containing the file.
func (w *Workspace) onChange(ctx context.Context, path string, deleted bool) error {
	if w.disposed.Load() {
		return ErrDisposed
	}

	if w.ctx.Store.IsSettingsFile(w.folder.Path, path) {
		w.ReloadConfig(ctx, true)
		return nil
	}

	rel, err := w.RelativePath(path)
	if err != nil {
		return err
	}
	if glob.MatchAny(w.Ignore(), rel) {
		return nil
	}

	var errs []error
	for _, pkg := range w.Packages() {
		filter := glob.Filter{Include: pkg.Files(), Exclude: pkg.Exclude()}
		if !filter.Matches(rel) {
			continue
		}

		all, names := pkg.DeployOnChange()
		if deleted {
			all, names = pkg.DeleteOnRemove()
		}
		targets, err := w.selectTargets(pkg, all, names)
		if err != nil {
			errs = append(errs, err)
		}

		for _, target := range targets {
			if deleted {
				err = w.DeleteFileIn(ctx, path, target)
			} else {
				err = w.DeployFileTo(ctx, path, target)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// selectTargets resolves a "bool or names" selector of pkg: all selects the
// package's own targets, names are looked up directly.
func (w *Workspace) selectTargets(pkg entity.Package, all bool, names []string) ([]entity.Target, error) {
	if all {
		names = pkg.TargetNames()
	}

	var errs []error
	targets := make([]entity.Target, 0, len(names))
	for _, name := range names {
		t, ok := w.TargetByName(name)
		if !ok {
			errs = append(errs, fmt.Errorf("package %q: %w: %s", pkg.Name(), ops.ErrTargetNotFound, name))
			continue
		}
		targets = append(targets, t)
	}
	return targets, errors.Join(errs...)
}
