// Package ops dispatches deploy, pull and delete operations of a workspace
// to the plugins handling each target's type.
package ops

import (
	"context"

	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/plugin"
)

// Workspace is what an operation needs from the workspace it runs in.
type Workspace interface {
	plugin.Context

	// Packages returns the packages of the current configuration.
	Packages() []entity.Package

	// TargetByName returns the target with the given display name.
	TargetByName(name string) (entity.Target, bool)

	// Ignore returns the global ignore globs of the current configuration.
	Ignore() []string
}

// Handlers performs the operations a workspace forwards.
type Handlers interface {
	DeployFileTo(ctx context.Context, ws Workspace, file string, target entity.Target) error
	DeployPackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error
	PullFileFrom(ctx context.Context, ws Workspace, file string, target entity.Target) error
	PullFilesFrom(ctx context.Context, ws Workspace, files []string, target entity.Target) error
	PullPackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error
	DeleteFileIn(ctx context.Context, ws Workspace, file string, target entity.Target) error
	DeletePackage(ctx context.Context, ws Workspace, pkg entity.Package, targets ...entity.Target) error
}

// Op names an operation kind.
type Op string

// Operation kinds.
const (
	OpDeploy Op = "deploy"
	OpPull   Op = "pull"
	OpDelete Op = "delete"
)
