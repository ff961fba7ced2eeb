// Package plugintest provides a plugin.Context for plugin tests.
package plugintest

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dshills/deployd/internal/entity"
)

// Workspace is an in-memory plugin.Context rooted at Dir.
type Workspace struct {
	Dir     string
	Title   string
	Log     *slog.Logger
	targets []any
}

// New creates a workspace rooted at dir with the given raw target entries.
func New(dir string, targets ...map[string]any) *Workspace {
	raw := make([]any, len(targets))
	for i, t := range targets {
		raw[i] = t
	}
	return &Workspace{
		Dir:     dir,
		Title:   filepath.Base(dir),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		targets: raw,
	}
}

// Root implements plugin.Context.
func (w *Workspace) Root() string { return w.Dir }

// Name implements plugin.Context.
func (w *Workspace) Name() string { return w.Title }

// IsPathOf implements plugin.Context.
func (w *Workspace) IsPathOf(path string) bool {
	rel, err := filepath.Rel(w.Dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RelativePath implements plugin.Context.
func (w *Workspace) RelativePath(path string) (string, error) {
	rel, err := filepath.Rel(w.Dir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Targets implements plugin.Context.
func (w *Workspace) Targets() []entity.Target {
	return entity.Targets(w.targets, w)
}

// Target returns the target with the given name.
func (w *Workspace) Target(name string) entity.Target {
	for _, t := range w.Targets() {
		if t.Name() == name {
			return t
		}
	}
	panic("plugintest: no target " + name)
}

// Logger implements plugin.Context.
func (w *Workspace) Logger() *slog.Logger { return w.Log }
