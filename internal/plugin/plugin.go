// Package plugin defines the target handlers that perform deploy, pull and
// delete operations, and the registry that maps a target's type to one.
//
// A plugin must implement Plugin. Pull and delete are optional capabilities
// expressed by the Puller and Deleter interfaces:
//
//	reg := plugin.NewRegistry()
//	reg.MustRegister(dryrun.New())
//
//	p, ok := reg.Lookup(target.Type())
//	if puller, ok := p.(plugin.Puller); ok {
//	    err = puller.Pull(ctx, req)
//	}
package plugin

import (
	"context"
	"log/slog"

	"github.com/dshills/deployd/internal/entity"
)

// Context is the workspace a plugin operates in.
type Context interface {
	// Root returns the absolute workspace root.
	Root() string

	// Name returns the workspace display name.
	Name() string

	// IsPathOf reports whether path lies inside the workspace.
	IsPathOf(path string) bool

	// RelativePath returns path relative to the root, with forward slashes.
	RelativePath(path string) (string, error)

	// Targets returns the targets of the current configuration.
	Targets() []entity.Target

	// Logger returns the workspace output sink.
	Logger() *slog.Logger
}

// Request is one operation against one target.
type Request struct {
	// ID correlates log lines of one operation.
	ID string

	// Workspace is the workspace the files belong to.
	Workspace Context

	// Target is the destination.
	Target entity.Target

	// Files are absolute local paths.
	Files []string
}

// Plugin handles the targets of one type.
type Plugin interface {
	// Type returns the target type this plugin handles.
	Type() string

	// Deploy transfers the request's files to the target.
	Deploy(ctx context.Context, req Request) error
}

// Puller is implemented by plugins that can fetch files from a target.
type Puller interface {
	Pull(ctx context.Context, req Request) error
}

// Deleter is implemented by plugins that can remove files from a target.
type Deleter interface {
	Delete(ctx context.Context, req Request) error
}

// CanPull reports whether p supports pull.
func CanPull(p Plugin) bool {
	_, ok := p.(Puller)
	return ok
}

// CanDelete reports whether p supports delete.
func CanDelete(p Plugin) bool {
	_, ok := p.(Deleter)
	return ok
}
