// Package script provides the "script" target type, which hands operations
// to a user Lua script.
//
// The script named by the target's "script" option (relative to the
// workspace root) defines global functions:
//
//	function deploy(files, target) ... end
//	function pull(files, target) ... end    -- optional
//	function delete(files, target) ... end  -- optional
//
// files is a list of workspace-relative paths and target is the target's
// settings entry. A function fails by raising an error or by returning
// false and a message. The globals workspace (root, name) and deployd
// (log, abs) are available to the script.
package script

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/deployd/internal/plugin"
	"github.com/dshills/deployd/internal/plugin/lua"
)

// Type is the target type handled by this plugin.
const Type = "script"

// OptionScript is the target option naming the script file.
const OptionScript = "script"

// ErrNoScript is returned when a target has no script option.
var ErrNoScript = errors.New("script target has no script")

// Plugin runs one fresh Lua state per operation.
type Plugin struct {
	timeout time.Duration
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithTimeout bounds each script call.
func WithTimeout(d time.Duration) Option {
	return func(p *Plugin) {
		p.timeout = d
	}
}

// New creates the plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{timeout: lua.DefaultTimeout}
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

// Pull implements plugin.Puller. It returns plugin.ErrNotSupported if the
// script defines no pull function.
func (p *Plugin) Pull(ctx context.Context, req plugin.Request) error {
	return p.run(ctx, "pull", req)
}

// Delete implements plugin.Deleter. It returns plugin.ErrNotSupported if the
// script defines no delete function.
func (p *Plugin) Delete(ctx context.Context, req plugin.Request) error {
	return p.run(ctx, "delete", req)
}

func (p *Plugin) run(ctx context.Context, fn string, req plugin.Request) error {
	path := req.Target.GetString(OptionScript)
	if path == "" {
		return fmt.Errorf("target %q: %w", req.Target.Name(), ErrNoScript)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.Workspace.Root(), path)
	}

	files := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		rel, err := req.Workspace.RelativePath(f)
		if err != nil {
			return fmt.Errorf("%s %s: %w", fn, f, err)
		}
		files = append(files, rel)
	}

	state := lua.NewState(lua.WithTimeout(p.timeout))
	defer state.Close()

	log := req.Workspace.Logger().With("id", req.ID, "target", req.Target.Name(), "script", path)
	root := req.Workspace.Root()

	state.SetGlobal("workspace", map[string]any{
		"root": root,
		"name": req.Workspace.Name(),
	})
	state.RegisterModule("deployd", map[string]glua.LGFunction{
		"log": func(L *glua.LState) int {
			log.Info(L.CheckString(1))
			return 0
		},
		"abs": func(L *glua.LState) int {
			L.Push(glua.LString(filepath.Join(root, filepath.FromSlash(L.CheckString(1)))))
			return 1
		},
	})

	if err := state.DoFile(ctx, path); err != nil {
		return fmt.Errorf("load script %s: %w", path, err)
	}
	if !state.HasFunction(fn) {
		if fn == "deploy" {
			return fmt.Errorf("script %s: %w: %s", path, lua.ErrFunctionNotFound, fn)
		}
		return fmt.Errorf("%s via script %s: %w", fn, path, plugin.ErrNotSupported)
	}

	results, err := state.Call(ctx, fn, files, req.Target.Payload)
	if err != nil {
		return fmt.Errorf("script %s: %s: %w", path, fn, err)
	}
	return resultError(fn, results)
}

// resultError turns a "false, message" return into an error.
func resultError(fn string, results []any) error {
	if len(results) == 0 {
		return nil
	}
	if ok, isBool := results[0].(bool); isBool && !ok {
		msg := "failed"
		if len(results) > 1 {
			msg = fmt.Sprint(results[1])
		}
		return fmt.Errorf("script %s: %s", fn, msg)
	}
	return nil
}
