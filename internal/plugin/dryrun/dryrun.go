// Package dryrun provides the "test" target type. It transfers nothing and
// reports the files an operation would touch.
package dryrun

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/deployd/internal/plugin"
)

// Type is the target type handled by this plugin.
const Type = "test"

// Call is one recorded operation.
type Call struct {
	Op     string
	ID     string
	Target string
	Files  []string // workspace-relative
}

// Plugin reports operations instead of performing them.
type Plugin struct {
	delay time.Duration

	mu    sync.Mutex
	calls []Call
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithDelay makes every operation take d, returning early if the context is
// cancelled.
func WithDelay(d time.Duration) Option {
	return func(p *Plugin) {
		p.delay = d
	}
}

// New creates the plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Type implements plugin.Plugin.
func (p *Plugin) Type() string { return Type }

// Deploy implements plugin.Plugin.
func (p *Plugin) Deploy(ctx context.Context, req plugin.Request) error {
	return p.run(ctx, "deploy", req)
}

// Pull implements plugin.Puller.
func (p *Plugin) Pull(ctx context.Context, req plugin.Request) error {
	return p.run(ctx, "pull", req)
}

// Delete implements plugin.Deleter.
func (p *Plugin) Delete(ctx context.Context, req plugin.Request) error {
	return p.run(ctx, "delete", req)
}

func (p *Plugin) run(ctx context.Context, op string, req plugin.Request) error {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	files := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		rel, err := req.Workspace.RelativePath(f)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, f, err)
		}
		files = append(files, rel)
	}

	log := req.Workspace.Logger()
	for _, f := range files {
		log.Info("dry run",
			"op", op,
			"id", req.ID,
			"target", req.Target.Name(),
			"file", f,
		)
	}

	p.mu.Lock()
	p.calls = append(p.calls, Call{
		Op:     op,
		ID:     req.ID,
		Target: req.Target.Name(),
		Files:  files,
	})
	p.mu.Unlock()
	return nil
}

// Calls returns a copy of the recorded operations.
func (p *Plugin) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset forgets the recorded operations.
func (p *Plugin) Reset() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}
