package workspace

import (
	"context"

	"github.com/dshills/deployd/internal/entity"
)

// Operation errors come back from the handlers unchanged.

// DeployFileTo deploys one file to target.
func (w *Workspace) DeployFileTo(ctx context.Context, file string, target entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.DeployFileTo(ctx, w, file, target)
}

// DeployPackage deploys a package to targets, or to the package's own
// targets when none are given.
func (w *Workspace) DeployPackage(ctx context.Context, pkg entity.Package, targets ...entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.DeployPackage(ctx, w, pkg, targets...)
}

// PullFileFrom pulls one file from target.
func (w *Workspace) PullFileFrom(ctx context.Context, file string, target entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.PullFileFrom(ctx, w, file, target)
}

// PullFilesFrom pulls several files from target.
func (w *Workspace) PullFilesFrom(ctx context.Context, files []string, target entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.PullFilesFrom(ctx, w, files, target)
}

// PullPackage pulls a package from targets.
func (w *Workspace) PullPackage(ctx context.Context, pkg entity.Package, targets ...entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.PullPackage(ctx, w, pkg, targets...)
}

// DeleteFileIn deletes one file in target.
func (w *Workspace) DeleteFileIn(ctx context.Context, file string, target entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.DeleteFileIn(ctx, w, file, target)
}

// DeletePackage deletes a package's files in targets.
func (w *Workspace) DeletePackage(ctx context.Context, pkg entity.Package, targets ...entity.Target) error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.ctx.Handlers.DeletePackage(ctx, w, pkg, targets...)
}
