package watcher

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWatcher is a channel-backed Watcher.
type mockWatcher struct {
	mu       sync.Mutex
	events   chan Event
	errors   chan error
	watching map[string]int
	closed   bool
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{
		events:   make(chan Event, 100),
		errors:   make(chan error, 100),
		watching: make(map[string]int),
	}
}

func (m *mockWatcher) WatchRecursive(path string, _ Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watching[path]++
	return nil
}

func (m *mockWatcher) Unwatch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching[path] == 0 {
		return ErrNotWatching
	}
	m.watching[path]--
	return nil
}

func (m *mockWatcher) Events() <-chan Event { return m.events }
func (m *mockWatcher) Errors() <-chan error { return m.errors }

func (m *mockWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
		close(m.errors)
	}
	return nil
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func quiet(t *testing.T, ch <-chan Event, d time.Duration) {
	t.Helper()
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %+v", extra)
	case <-time.After(d):
	}
}

func openBursts(dw *DebouncedWatcher) int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return len(dw.bursts)
}

func TestBurst_Net(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
		want Op
		ok   bool
	}{
		{"write", []Op{OpWrite}, OpWrite, true},
		{"create then write", []Op{OpCreate, OpWrite, OpChmod}, OpCreate, true},
		{"write then remove", []Op{OpWrite, OpRemove}, OpRemove, true},
		{"created and removed", []Op{OpCreate, OpWrite, OpRemove}, 0, false},
		{"created and renamed away", []Op{OpCreate, OpRename}, 0, false},
		{"replaced", []Op{OpRemove, OpCreate, OpWrite}, OpWrite, true},
		{"renamed away and back", []Op{OpRename, OpCreate}, OpWrite, true},
		{"chmod only", []Op{OpChmod, OpChmod}, OpChmod, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &burst{first: tt.ops[0]}
			for _, op := range tt.ops {
				b.add(Event{Op: op})
			}
			op, ok := b.net()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestDebouncedWatcher_Coalesces(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, WithDebounceDelay(30*time.Millisecond))
	defer dw.Close()

	mock.events <- Event{Path: "/proj/a.txt", Op: OpCreate}
	mock.events <- Event{Path: "/proj/a.txt", Op: OpWrite}
	mock.events <- Event{Path: "/proj/a.txt", Op: OpChmod}

	ev := receive(t, dw.Events())
	assert.Equal(t, "/proj/a.txt", ev.Path)
	assert.Equal(t, OpCreate, ev.Op)

	quiet(t, dw.Events(), 60*time.Millisecond)
}

func TestDebouncedWatcher_DropsTransientFiles(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, WithDebounceDelay(20*time.Millisecond))
	defer dw.Close()

	mock.events <- Event{Path: "/proj/.a.txt.swp", Op: OpCreate}
	mock.events <- Event{Path: "/proj/.a.txt.swp", Op: OpRemove}
	mock.events <- Event{Path: "/proj/a.txt", Op: OpRemove}
	mock.events <- Event{Path: "/proj/a.txt", Op: OpCreate}

	ev := receive(t, dw.Events())
	assert.Equal(t, Event{Path: "/proj/a.txt", Op: OpWrite}, Event{Path: ev.Path, Op: ev.Op})

	quiet(t, dw.Events(), 60*time.Millisecond)
	assert.Zero(t, openBursts(dw))
}

func TestDebouncedWatcher_SeparatePaths(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, WithDebounceDelay(20*time.Millisecond))
	defer dw.Close()

	mock.events <- Event{Path: "/proj/a.txt", Op: OpWrite}
	mock.events <- Event{Path: "/proj/b.txt", Op: OpRemove}

	got := map[string]Op{}
	for i := 0; i < 2; i++ {
		ev := receive(t, dw.Events())
		got[ev.Path] = ev.Op
	}
	assert.Equal(t, map[string]Op{"/proj/a.txt": OpWrite, "/proj/b.txt": OpRemove}, got)
}

func TestDebouncedWatcher_DelegatesWatches(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock)
	defer dw.Close()

	require.NoError(t, dw.WatchRecursive("/proj", nil))
	require.NoError(t, dw.Unwatch("/proj"))
	assert.ErrorIs(t, dw.Unwatch("/proj"), ErrNotWatching)
}

func TestDebouncedWatcher_ForwardsErrors(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, WithDebounceDelay(10*time.Millisecond))
	defer dw.Close()

	boom := errors.New("overflow")
	mock.errors <- boom

	select {
	case err := <-dw.Errors():
		assert.Same(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("no error forwarded")
	}
}

func TestDebouncedWatcher_Close(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, WithDebounceDelay(time.Hour))

	mock.events <- Event{Path: "/proj/a.txt", Op: OpWrite}
	require.Eventually(t, func() bool { return openBursts(dw) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, dw.Close())
	require.NoError(t, dw.Close())

	_, ok := <-dw.Events()
	assert.False(t, ok, "pending event delivered after close")
	mock.mu.Lock()
	assert.True(t, mock.closed)
	mock.mu.Unlock()
}
