package workspace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/deployd/internal/changeguard"
	"github.com/dshills/deployd/internal/ops"
)

func initialized(t *testing.T, store *memStore, handlers *recordingHandlers) *Workspace {
	t.Helper()

	ws, err := New(t.TempDir(), testContext(store, handlers))
	require.NoError(t, err)
	t.Cleanup(func() { ws.Dispose() })
	require.NoError(t, ws.Initialize(context.Background()))
	return ws
}

func TestWorkspace_DeployOnChange(t *testing.T) {
	handlers := &recordingHandlers{}
	ws := initialized(t, newMemStore(sampleSettings()), handlers)

	file := filepath.Join(ws.Root(), "public", "app.js")
	outcome, err := ws.HandleChange(context.Background(), file, changeguard.Changed, true)
	require.NoError(t, err)
	assert.Equal(t, changeguard.Handled, outcome)

	calls := handlers.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "DeployFileTo", calls[0].op)
	assert.Equal(t, []string{file}, calls[0].files)
	assert.Equal(t, []string{"staging"}, calls[0].targets)
}

func TestWorkspace_DeleteOnRemove(t *testing.T) {
	handlers := &recordingHandlers{}
	ws := initialized(t, newMemStore(sampleSettings()), handlers)

	file := filepath.Join(ws.Root(), "public", "old.css")
	require.NoError(t, ws.OnDeleted(context.Background(), file))

	calls := handlers.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "DeleteFileIn", calls[0].op)
	assert.Equal(t, []string{"staging"}, calls[0].targets)
	assert.Equal(t, []string{"prod"}, calls[1].targets)
}

func TestWorkspace_ChangeSkipsIgnoredAndUnmatched(t *testing.T) {
	handlers := &recordingHandlers{}
	ws := initialized(t, newMemStore(sampleSettings()), handlers)
	ctx := context.Background()

	require.NoError(t, ws.OnCreated(ctx, filepath.Join(ws.Root(), "public", "draft.tmp")))
	require.NoError(t, ws.OnChanged(ctx, filepath.Join(ws.Root(), "src", "main.go")))
	assert.Empty(t, handlers.recorded())

	err := ws.OnChanged(ctx, filepath.Join(filepath.Dir(ws.Root()), "elsewhere.txt"))
	assert.ErrorIs(t, err, ops.ErrNotInWorkspace)
}

func TestWorkspace_ChangeUnknownTarget(t *testing.T) {
	handlers := &recordingHandlers{}
	ws := initialized(t, newMemStore(sampleSettings()), handlers)

	err := ws.OnChanged(context.Background(), filepath.Join(ws.Root(), "docs", "index.md"))
	assert.ErrorIs(t, err, ops.ErrTargetNotFound)
	assert.Empty(t, handlers.recorded())
}

func TestWorkspace_SettingsChangeReloads(t *testing.T) {
	store := newMemStore(sampleSettings())
	ws := initialized(t, store, &recordingHandlers{})

	reloaded := make(chan struct{}, 1)
	ws.OnConfigReloaded(func(ReloadEvent) error {
		reloaded <- struct{}{}
		return nil
	})

	store.set(map[string]any{})
	settings := filepath.Join(ws.Root(), ".deploy.toml")
	outcome, err := ws.HandleChange(context.Background(), settings, changeguard.Changed, false)
	require.NoError(t, err)
	assert.Equal(t, changeguard.Handled, outcome)

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("settings change did not reload")
	}
	assert.Empty(t, ws.Packages())
}

func TestWorkspace_HandleChangeSharesGuard(t *testing.T) {
	guard := changeguard.New(changeguard.WithLogger(discardLogger()))
	c := testContext(newMemStore(sampleSettings()), &recordingHandlers{})
	c.Guard = guard

	first, err := New(t.TempDir(), c)
	require.NoError(t, err)
	defer first.Dispose()

	// Simulate a pass in flight for a path of the first workspace.
	path := filepath.Join(first.Root(), "public", "a.js")
	block := make(chan struct{})
	started := make(chan struct{})
	go guard.Handle(context.Background(), changeguard.HandlerFuncs{
		Changed: func(context.Context, string) error {
			close(started)
			<-block
			return nil
		},
	}, path, changeguard.Changed, false)
	<-started

	outcome, err := first.HandleChange(context.Background(), path, changeguard.Changed, false)
	assert.NoError(t, err)
	assert.Equal(t, changeguard.Dropped, outcome)
	close(block)
}
