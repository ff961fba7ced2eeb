// Package batch provides the "batch" target type, which forwards an
// operation to the targets listed in its "targets" option.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/plugin"
)

// Type is the target type handled by this plugin.
const Type = "batch"

// OptionTargets lists the names of the member targets.
const OptionTargets = "targets"

// Batch errors.
var (
	// ErrCycle is returned when a batch target reaches itself.
	ErrCycle = errors.New("batch target cycle")

	// ErrUnknownMember is returned when a member name matches no target.
	ErrUnknownMember = errors.New("batch member not found")
)

type chainKey struct{}

// Plugin fans operations out through a registry.
type Plugin struct {
	registry *plugin.Registry
}

// New creates a batch plugin resolving members through registry.
func New(registry *plugin.Registry) *Plugin {
	return &Plugin{registry: registry}
}

// Type implements plugin.Plugin.
func (p *Plugin) Type() string { return Type }

// Deploy implements plugin.Plugin.
func (p *Plugin) Deploy(ctx context.Context, req plugin.Request) error {
	return p.fanOut(ctx, req, func(ctx context.Context, member plugin.Plugin, r plugin.Request) error {
		return member.Deploy(ctx, r)
	})
}

// Pull implements plugin.Puller.
func (p *Plugin) Pull(ctx context.Context, req plugin.Request) error {
	return p.fanOut(ctx, req, func(ctx context.Context, member plugin.Plugin, r plugin.Request) error {
		puller, ok := member.(plugin.Puller)
		if !ok {
			return fmt.Errorf("pull from %q: %w", r.Target.Name(), plugin.ErrNotSupported)
		}
		return puller.Pull(ctx, r)
	})
}

// Delete implements plugin.Deleter.
func (p *Plugin) Delete(ctx context.Context, req plugin.Request) error {
	return p.fanOut(ctx, req, func(ctx context.Context, member plugin.Plugin, r plugin.Request) error {
		deleter, ok := member.(plugin.Deleter)
		if !ok {
			return fmt.Errorf("delete in %q: %w", r.Target.Name(), plugin.ErrNotSupported)
		}
		return deleter.Delete(ctx, r)
	})
}

type memberFunc func(ctx context.Context, member plugin.Plugin, req plugin.Request) error

// fanOut runs fn for every member target in order. A failing member does not
// stop the others; all errors are joined.
func (p *Plugin) fanOut(ctx context.Context, req plugin.Request, fn memberFunc) error {
	chain, _ := ctx.Value(chainKey{}).([]string)
	self := req.Target.Name()
	for _, name := range chain {
		if name == self {
			return fmt.Errorf("%w: %v -> %s", ErrCycle, chain, self)
		}
	}
	ctx = context.WithValue(ctx, chainKey{}, append(append([]string(nil), chain...), self))

	members, err := resolve(req.Workspace.Targets(), req.Target.GetStrings(OptionTargets))
	if err != nil {
		return err
	}

	log := req.Workspace.Logger()
	var errs []error
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		handler, ok := p.registry.Lookup(member.Type())
		if !ok {
			errs = append(errs, fmt.Errorf("batch member %q: unknown target type %q", member.Name(), member.Type()))
			continue
		}

		sub := req
		sub.Target = member
		log.Debug("batch member", "id", req.ID, "batch", self, "target", member.Name())
		if err := fn(ctx, handler, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve maps member names to targets, keeping the listed order.
func resolve(targets []entity.Target, names []string) ([]entity.Target, error) {
	out := make([]entity.Target, 0, len(names))
	for _, name := range names {
		found := false
		for _, t := range targets {
			if t.Name() == name {
				out = append(out, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMember, name)
		}
	}
	return out, nil
}
