package watcher

import (
	"sync"
	"time"
)

// burst collects the events of one path inside the debounce window.
type burst struct {
	first Op
	last  Op
	seen  Op
	at    time.Time
	timer *time.Timer
}

func (b *burst) add(ev Event) {
	b.last = ev.Op
	b.seen |= ev.Op
	b.at = ev.Timestamp
}

// net reduces the burst to the one operation it amounts to. The first
// operation tells whether the path existed before the burst and the last
// whether it exists after. A path created and removed inside the window
// reports nothing; one removed and recreated reports a write.
func (b *burst) net() (Op, bool) {
	existed := !b.first.Has(OpCreate)
	exists := !b.last.Has(OpRemove) && !b.last.Has(OpRename)

	switch {
	case !existed && !exists:
		return 0, false
	case !existed:
		return OpCreate, true
	case !exists:
		return OpRemove, true
	case b.seen&^OpChmod != 0:
		return OpWrite, true
	default:
		return OpChmod, true
	}
}

// DebouncedWatcher wraps a Watcher and reports each path once per quiet
// period, with the net change of the events it received for that path.
type DebouncedWatcher struct {
	inner Watcher
	delay time.Duration

	mu     sync.Mutex
	bursts map[string]*burst
	events chan Event
	errors chan error
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewDebouncedWatcher wraps inner. The window, set by WithDebounceDelay,
// restarts with every event for the same path.
func NewDebouncedWatcher(inner Watcher, opts ...WatcherOption) *DebouncedWatcher {
	config := newConfig(opts)

	dw := &DebouncedWatcher{
		inner:  inner,
		delay:  config.DebounceDelay,
		bursts: make(map[string]*burst),
		events: make(chan Event, config.BufferSize),
		errors: make(chan error, config.BufferSize),
		done:   make(chan struct{}),
	}

	dw.wg.Add(1)
	go dw.loop()

	return dw
}

// WatchRecursive starts watching a directory recursively.
func (dw *DebouncedWatcher) WatchRecursive(path string, filter Filter) error {
	return dw.inner.WatchRecursive(path, filter)
}

// Unwatch releases one WatchRecursive of path.
func (dw *DebouncedWatcher) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// Events returns the debounced event channel.
func (dw *DebouncedWatcher) Events() <-chan Event {
	return dw.events
}

// Errors returns the error channel.
func (dw *DebouncedWatcher) Errors() <-chan error {
	return dw.errors
}

// Close stops the debounced watcher and the inner watcher. Bursts still
// inside their window are discarded.
func (dw *DebouncedWatcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	close(dw.done)
	for path, b := range dw.bursts {
		b.timer.Stop()
		delete(dw.bursts, path)
	}
	dw.mu.Unlock()

	dw.wg.Wait()
	err := dw.inner.Close()

	dw.mu.Lock()
	close(dw.events)
	close(dw.errors)
	dw.mu.Unlock()

	return err
}

func (dw *DebouncedWatcher) loop() {
	defer dw.wg.Done()

	for {
		select {
		case <-dw.done:
			return
		case ev, ok := <-dw.inner.Events():
			if !ok {
				return
			}
			dw.collect(ev)
		case err, ok := <-dw.inner.Errors():
			if !ok {
				return
			}
			dw.mu.Lock()
			if !dw.closed {
				select {
				case dw.errors <- err:
				default:
				}
			}
			dw.mu.Unlock()
		}
	}
}

// collect adds ev to the burst of its path, opening one if needed.
func (dw *DebouncedWatcher) collect(ev Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}

	if b, ok := dw.bursts[ev.Path]; ok {
		b.add(ev)
		b.timer.Reset(dw.delay)
		return
	}

	path := ev.Path
	b := &burst{first: ev.Op}
	b.add(ev)
	b.timer = time.AfterFunc(dw.delay, func() { dw.settle(path) })
	dw.bursts[path] = b
}

// settle closes the burst of path and emits its net change, if any.
func (dw *DebouncedWatcher) settle(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	b, ok := dw.bursts[path]
	if !ok || dw.closed {
		return
	}
	delete(dw.bursts, path)

	op, ok := b.net()
	if !ok {
		return
	}
	select {
	case dw.events <- Event{Path: path, Op: op, Timestamp: b.at}:
	default:
		select {
		case dw.errors <- errDropped(path, op):
		default:
		}
	}
}

var _ Watcher = (*DebouncedWatcher)(nil)
