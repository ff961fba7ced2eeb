package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestState_CallConvertsValues(t *testing.T) {
	state := NewState()
	defer state.Close()

	require.NoError(t, state.DoString(context.Background(), `
		function summarize(files, target)
			return #files, target.name, { first = files[1] }
		end
	`))

	results, err := state.Call(context.Background(), "summarize",
		[]string{"/proj/a.txt", "/proj/b.txt"},
		map[string]any{"name": "staging"},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(2), results[0])
	assert.Equal(t, "staging", results[1])
	assert.Equal(t, map[string]any{"first": "/proj/a.txt"}, results[2])
}

func TestState_CallMissingFunction(t *testing.T) {
	state := NewState()
	defer state.Close()

	_, err := state.Call(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
	assert.False(t, state.HasFunction("nope"))
}

func TestState_CallError(t *testing.T) {
	state := NewState()
	defer state.Close()

	require.NoError(t, state.DoString(context.Background(), `function fail() error("boom") end`))

	_, err := state.Call(context.Background(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The stack is left usable after a failed call.
	require.NoError(t, state.DoString(context.Background(), `function ok() return true end`))
	results, err := state.Call(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, []any{true}, results)
}

func TestState_Timeout(t *testing.T) {
	state := NewState(WithTimeout(50 * time.Millisecond))
	defer state.Close()

	require.NoError(t, state.DoString(context.Background(), `function spin() while true do end end`))

	_, err := state.Call(context.Background(), "spin")
	assert.Error(t, err)
}

func TestState_ChunkTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spin.lua")
	require.NoError(t, os.WriteFile(path, []byte(`while true do end`), 0o644))

	state := NewState(WithTimeout(50 * time.Millisecond))
	defer state.Close()

	done := make(chan error, 1)
	go func() { done <- state.DoFile(context.Background(), path) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("top-level chunk ignored the timeout")
	}
}

func TestState_ChunkCancelled(t *testing.T) {
	state := NewState(WithTimeout(0))
	defer state.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- state.DoString(ctx, `while true do end`) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("chunk ignored context cancellation")
	}
}

func TestState_Sandbox(t *testing.T) {
	state := NewState()
	defer state.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		assert.False(t, state.HasFunction(name), name)
	}

	assert.Error(t, state.DoString(context.Background(), `os.exit(1)`))
	assert.Error(t, state.DoString(context.Background(), `io.open("/etc/passwd")`))
	assert.NoError(t, state.DoString(context.Background(), `x = string.upper("a") .. table.concat({"b"}) .. math.floor(1.5)`))
}

func TestState_DoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function deploy() return "ok" end`), 0o644))

	state := NewState()
	require.NoError(t, state.DoFile(context.Background(), path))
	assert.True(t, state.HasFunction("deploy"))

	require.NoError(t, state.Close())
	assert.ErrorIs(t, state.DoString(context.Background(), `x = 1`), ErrStateClosed)
	_, err := state.Call(context.Background(), "deploy")
	assert.ErrorIs(t, err, ErrStateClosed)
}

func TestState_RegisterModule(t *testing.T) {
	state := NewState()
	defer state.Close()

	var got string
	state.RegisterModule("host", map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			got = L.CheckString(1)
			return 0
		},
	})
	state.SetGlobal("workspace", map[string]any{"name": "proj"})

	require.NoError(t, state.DoString(context.Background(), `host.log("hello " .. workspace.name)`))
	assert.Equal(t, "hello proj", got)
}
