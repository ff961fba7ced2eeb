package workspace

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/deployd/internal/config/tree"
	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/ops"
	"github.com/dshills/deployd/internal/retry"
)

// memStore is an in-memory Store. Loads block on gate when it is set.
type memStore struct {
	mu  sync.Mutex
	raw map[string]any
	err error

	gate    chan struct{}
	started chan struct{}

	loads     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func newMemStore(raw map[string]any) *memStore {
	return &memStore{raw: raw, started: make(chan struct{}, 16)}
}

func (s *memStore) Load(ctx context.Context, folder string) (map[string]any, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.maxActive.Load()
		if n <= peak || s.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	s.loads.Add(1)

	select {
	case s.started <- struct{}{}:
	default:
	}
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Clone(s.raw), s.err
}

func (s *memStore) set(raw map[string]any) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

func (s *memStore) IsSettingsFile(folder, path string) bool {
	return filepath.Clean(path) == filepath.Join(folder, ".deploy.toml")
}

// call is one forwarded operation.
type call struct {
	op      string
	root    string
	files   []string
	pkg     string
	targets []string
}

// recordingHandlers records forwarded operations and returns err.
type recordingHandlers struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (h *recordingHandlers) record(op string, ws ops.Workspace, files []string, pkg string, targets ...entity.Target) error {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name()
	}

	h.mu.Lock()
	h.calls = append(h.calls, call{op: op, root: ws.Root(), files: files, pkg: pkg, targets: names})
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandlers) recorded() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func (h *recordingHandlers) DeployFileTo(_ context.Context, ws ops.Workspace, file string, target entity.Target) error {
	return h.record("DeployFileTo", ws, []string{file}, "", target)
}

func (h *recordingHandlers) DeployPackage(_ context.Context, ws ops.Workspace, pkg entity.Package, targets ...entity.Target) error {
	return h.record("DeployPackage", ws, nil, pkg.Name(), targets...)
}

func (h *recordingHandlers) PullFileFrom(_ context.Context, ws ops.Workspace, file string, target entity.Target) error {
	return h.record("PullFileFrom", ws, []string{file}, "", target)
}

func (h *recordingHandlers) PullFilesFrom(_ context.Context, ws ops.Workspace, files []string, target entity.Target) error {
	return h.record("PullFilesFrom", ws, files, "", target)
}

func (h *recordingHandlers) PullPackage(_ context.Context, ws ops.Workspace, pkg entity.Package, targets ...entity.Target) error {
	return h.record("PullPackage", ws, nil, pkg.Name(), targets...)
}

func (h *recordingHandlers) DeleteFileIn(_ context.Context, ws ops.Workspace, file string, target entity.Target) error {
	return h.record("DeleteFileIn", ws, []string{file}, "", target)
}

func (h *recordingHandlers) DeletePackage(_ context.Context, ws ops.Workspace, pkg entity.Package, targets ...entity.Target) error {
	return h.record("DeletePackage", ws, nil, pkg.Name(), targets...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(store Store, handlers ops.Handlers) Context {
	return Context{
		Store:        store,
		Handlers:     handlers,
		Logger:       discardLogger(),
		ReloadPolicy: retry.Policy{Delay: 5 * time.Millisecond, MaxAttempts: 200},
	}
}

// sampleSettings is a deploy section with two targets and two packages.
func sampleSettings() map[string]any {
	return map[string]any{
		"ignore": []any{"**/*.tmp"},
		"targets": []any{
			map[string]any{"name": "staging", "type": "test"},
			"broken",
			map[string]any{"name": "prod", "type": "test"},
		},
		"packages": []any{
			map[string]any{
				"name":           "site",
				"files":          []any{"public/**"},
				"targets":        []any{"staging", "prod"},
				"deployOnChange": []any{"staging"},
				"deleteOnRemove": true,
			},
			map[string]any{
				"name":           "docs",
				"files":          "docs/**",
				"deployOnChange": []any{"missing"},
			},
		},
	}
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
