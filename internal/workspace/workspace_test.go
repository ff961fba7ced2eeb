package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/deployd/internal/config"
)

func TestWorkspace_InitializeOnce(t *testing.T) {
	store := newMemStore(sampleSettings())
	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	assert.Nil(t, ws.Config())
	assert.False(t, ws.IsInitialized())
	assert.Empty(t, ws.Packages())

	require.NoError(t, ws.Initialize(context.Background()))
	assert.True(t, ws.IsInitialized())
	require.NotNil(t, ws.Config())
	assert.Len(t, ws.Packages(), 2)
	assert.Len(t, ws.Targets(), 2)

	assert.ErrorIs(t, ws.Initialize(context.Background()), ErrAlreadyInitialized)
	assert.Equal(t, int32(1), store.loads.Load())
}

func TestWorkspace_InitializeCancelled(t *testing.T) {
	store := newMemStore(sampleSettings())
	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ws.Initialize(ctx), context.Canceled)
	assert.False(t, ws.IsInitialized())
	assert.Nil(t, ws.Config())
	assert.Equal(t, int32(0), store.loads.Load())

	require.NoError(t, ws.Initialize(context.Background()))
	assert.True(t, ws.IsInitialized())
	assert.Len(t, ws.Packages(), 2)
}

func TestWorkspace_InitializeWaitsForRunningReload(t *testing.T) {
	store := newMemStore(sampleSettings())
	store.gate = make(chan struct{})

	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	go ws.ReloadConfig(context.Background(), false)
	<-store.started

	done := make(chan error, 1)
	go func() {
		done <- ws.Initialize(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("Initialize returned %v while a reload was still loading", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, ws.IsInitialized())
	assert.Nil(t, ws.Config())

	close(store.gate)
	require.NoError(t, <-done)
	assert.True(t, ws.IsInitialized())
	require.NotNil(t, ws.Config())
	assert.Len(t, ws.Packages(), 2)
}

func TestWorkspace_InitializeGivesUpWithContext(t *testing.T) {
	store := newMemStore(sampleSettings())
	store.gate = make(chan struct{})
	defer close(store.gate)

	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	go ws.ReloadConfig(context.Background(), false)
	<-store.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ws.Initialize(ctx), context.DeadlineExceeded)
	assert.False(t, ws.IsInitialized())
}

func TestWorkspace_ReloadContention(t *testing.T) {
	store := newMemStore(sampleSettings())
	store.gate = make(chan struct{})

	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	ctx := context.Background()
	first := make(chan config.Outcome, 1)
	go func() {
		first <- ws.ReloadConfig(ctx, false)
	}()

	<-store.started
	assert.True(t, ws.IsReloadingConfig())
	assert.Equal(t, config.Skipped, ws.ReloadConfig(ctx, false))
	assert.Equal(t, config.Deferred, ws.ReloadConfig(ctx, true))

	close(store.gate)
	assert.Equal(t, config.Reloaded, <-first)

	assert.Eventually(t, func() bool {
		return store.loads.Load() == 2 && !ws.IsReloadingConfig()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), store.maxActive.Load(), "reloads overlapped")
}

func TestWorkspace_LoadFailureYieldsEmptyConfig(t *testing.T) {
	store := newMemStore(nil)
	store.err = errors.New("permission denied")

	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	require.NoError(t, ws.Initialize(context.Background()))
	require.NotNil(t, ws.Config())
	assert.True(t, ws.Config().IsEmpty())
	assert.Empty(t, ws.Packages())
	assert.False(t, ws.IsReloadingConfig())
}

func TestWorkspace_ReloadEvent(t *testing.T) {
	store := newMemStore(sampleSettings())
	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	require.NoError(t, ws.Initialize(context.Background()))
	before := ws.Config()

	var order []string
	var got ReloadEvent
	ws.OnConfigReloaded(func(ev ReloadEvent) error {
		order = append(order, "failing")
		return errors.New("observer failed")
	})
	ws.OnConfigReloaded(func(ev ReloadEvent) error {
		order = append(order, "panicking")
		panic("observer panicked")
	})
	ws.OnConfigReloaded(func(ev ReloadEvent) error {
		order = append(order, "recording")
		got = ev
		assert.Same(t, ev.New, ev.Workspace.Config(), "config not swapped before publish")
		return nil
	})

	store.set(map[string]any{"targets": map[string]any{"name": "only", "type": "test"}})
	assert.Equal(t, config.Reloaded, ws.ReloadConfig(context.Background(), true))

	assert.Equal(t, []string{"failing", "panicking", "recording"}, order)
	assert.Same(t, ws, got.Workspace)
	assert.Same(t, before, got.Old)
	assert.Same(t, ws.Config(), got.New)
	require.Len(t, ws.Targets(), 1)
	assert.Equal(t, "only", ws.Targets()[0].Name())
}

func TestWorkspace_IsPathOf(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	ws, err := New("/proj", testContext(newMemStore(nil), &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	tests := []struct {
		path string
		want bool
	}{
		{"/proj/src/a.ts", true},
		{"/other/a.ts", false},
		{"src/a.ts", true},
		{"/proj", true},
		{"/proj/", true},
		{"/project/a.ts", false},
		{"/proj/../other/a.ts", false},
		{"../other/a.ts", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ws.IsPathOf(tt.path))
		})
	}

	rel, err := ws.RelativePath("/proj/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "src/a.ts", rel)

	_, err = ws.RelativePath("/other/a.ts")
	assert.Error(t, err)
}

func TestWorkspace_DisposeDetachesListeners(t *testing.T) {
	store := newMemStore(sampleSettings())
	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)
	require.NoError(t, ws.Initialize(context.Background()))

	fired := 0
	ws.OnConfigReloaded(func(ReloadEvent) error {
		fired++
		return nil
	})

	require.NoError(t, ws.Dispose())
	assert.Equal(t, config.Skipped, ws.ReloadConfig(context.Background(), true))
	assert.Zero(t, fired)
}

func TestWorkspace_DisposeDuringReload(t *testing.T) {
	store := newMemStore(sampleSettings())
	store.gate = make(chan struct{})

	ws, err := New(t.TempDir(), testContext(store, &recordingHandlers{}))
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	ws.OnConfigReloaded(func(ReloadEvent) error {
		fired <- struct{}{}
		return nil
	})

	done := make(chan config.Outcome, 1)
	go func() {
		done <- ws.ReloadConfig(context.Background(), false)
	}()
	<-store.started

	require.NoError(t, ws.Dispose())
	close(store.gate)

	// The in-flight reload still completes; nobody hears about it.
	assert.Equal(t, config.Reloaded, <-done)
	assert.NotNil(t, ws.Config())
	assert.Empty(t, fired)
	assert.False(t, ws.IsReloadingConfig())
}

func TestWorkspace_DisposeReleasesResources(t *testing.T) {
	siblings := NewSet()
	c := testContext(newMemStore(nil), &recordingHandlers{})
	c.Siblings = siblings

	ws, err := New(t.TempDir(), c)
	require.NoError(t, err)
	other, err := New(t.TempDir(), c)
	require.NoError(t, err)
	defer other.Dispose()

	assert.Equal(t, []*Workspace{other}, ws.Siblings())
	assert.Equal(t, 2, siblings.Len())

	var closed []string
	require.NoError(t, ws.Own(closerFunc(func() error {
		closed = append(closed, "watcher")
		return nil
	})))
	require.NoError(t, ws.Own(closerFunc(func() error {
		closed = append(closed, "subscription")
		return errors.New("already closed")
	})))

	err = ws.Dispose()
	assert.ErrorContains(t, err, "already closed")
	assert.Equal(t, []string{"subscription", "watcher"}, closed)
	assert.True(t, ws.IsDisposed())
	assert.Equal(t, 1, siblings.Len())

	assert.NoError(t, ws.Dispose())
	assert.Len(t, closed, 2)

	late := false
	assert.ErrorIs(t, ws.Own(closerFunc(func() error {
		late = true
		return nil
	})), ErrDisposed)
	assert.True(t, late)

	assert.ErrorIs(t, ws.Initialize(context.Background()), ErrDisposed)
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestWorkspace_Disown(t *testing.T) {
	ws, err := New(t.TempDir(), testContext(newMemStore(nil), &recordingHandlers{}))
	require.NoError(t, err)

	kept, released := &countingCloser{}, &countingCloser{}
	require.NoError(t, ws.Own(kept))
	require.NoError(t, ws.Own(closerFunc(func() error { return nil })))
	require.NoError(t, ws.Own(released))

	assert.True(t, ws.Disown(released))
	assert.False(t, ws.Disown(released))

	require.NoError(t, ws.Dispose())
	assert.Equal(t, 1, kept.closed)
	assert.Zero(t, released.closed)
}

func TestWorkspace_ByName(t *testing.T) {
	ws, err := New(t.TempDir(), testContext(newMemStore(sampleSettings()), &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()
	require.NoError(t, ws.Initialize(context.Background()))

	prod, ok := ws.TargetByName("prod")
	require.True(t, ok)
	assert.Equal(t, 1, prod.Index, "malformed entry consumed an index")
	assert.Same(t, ws, prod.Owner)

	docs, ok := ws.PackageByName("docs")
	require.True(t, ok)
	assert.Equal(t, 1, docs.Index)

	_, ok = ws.PackageByName("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"**/*.tmp"}, ws.Ignore())
}

func TestSet_Owner(t *testing.T) {
	root := t.TempDir()
	c := testContext(newMemStore(nil), &recordingHandlers{})
	c.Siblings = NewSet()

	outer, err := New(root, c)
	require.NoError(t, err)
	inner, err := New(filepath.Join(root, "sub"), c)
	require.NoError(t, err)

	got, ok := c.Siblings.Owner(filepath.Join(root, "sub", "a.txt"))
	require.True(t, ok)
	assert.Same(t, inner, got)

	got, ok = c.Siblings.Owner(filepath.Join(root, "a.txt"))
	require.True(t, ok)
	assert.Same(t, outer, got)

	_, ok = c.Siblings.Owner("a.txt")
	assert.False(t, ok)

	got, ok = c.Siblings.Get(root)
	require.True(t, ok)
	assert.Same(t, outer, got)
}

func TestWorkspace_Validate(t *testing.T) {
	ws, err := New(t.TempDir(), testContext(newMemStore(sampleSettings()), &recordingHandlers{}))
	require.NoError(t, err)
	defer ws.Dispose()

	assert.NoError(t, ws.Validate())

	require.NoError(t, ws.Initialize(context.Background()))
	err = ws.Validate()
	require.Error(t, err)
	assert.Equal(t, "targets[1]: expected object, got string", err.Error())
	assert.Len(t, ws.Targets(), 2, "invalid entries are still filtered, not fatal")
}
