package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/deployd/internal/glob"
)

// root is one recursively watched directory.
type root struct {
	refs    int
	filters []Filter
}

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	config  Config

	roots map[string]*root
	dirs  map[string]struct{}

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...WatcherOption) (*FSNotifyWatcher, error) {
	config := newConfig(opts)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		config:  config,
		roots:   make(map[string]*root),
		dirs:    make(map[string]struct{}),
		events:  make(chan Event, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchRecursive watches a directory and all subdirectories that are not
// ignored. Watching a file watches that file alone.
func (w *FSNotifyWatcher) WatchRecursive(path string, filter Filter) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	r, ok := w.roots[absPath]
	if !ok {
		r = &root{}
		w.roots[absPath] = r
	}
	r.refs++
	r.filters = append(r.filters, filter)

	_, err = w.addTree(absPath, false)
	return err
}

// Unwatch releases one WatchRecursive of path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	r, ok := w.roots[absPath]
	if !ok {
		return ErrNotWatching
	}
	r.refs--
	r.filters = r.filters[1:]
	if r.refs > 0 {
		return nil
	}
	delete(w.roots, absPath)

	for dir := range w.dirs {
		if within(dir, absPath) && !w.covered(dir) {
			_ = w.watcher.Remove(dir)
			delete(w.dirs, dir)
		}
	}
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// addTree registers every non-ignored directory from top down. With
// existing set, it returns the files found, for a directory that appeared
// after its parent was watched. Callers hold w.mu.
func (w *FSNotifyWatcher) addTree(top string, existing bool) ([]string, error) {
	var (
		files []string
		errs  []error
	)
	walkErr := filepath.WalkDir(top, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != top && w.ignoredLocked(p, !d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if existing {
				files = append(files, p)
			} else if p == top {
				errs = append(errs, w.add(p))
			}
			return nil
		}
		if err := w.add(p); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", p, err))
		}
		return nil
	})
	return files, errors.Join(append(errs, walkErr)...)
}

// add registers one path with fsnotify. Callers hold w.mu.
func (w *FSNotifyWatcher) add(path string) error {
	if _, ok := w.dirs[path]; ok {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.dirs[path] = struct{}{}
	return nil
}

// forget drops a removed directory and everything below it. fsnotify has
// already released the underlying watches. Callers hold w.mu.
func (w *FSNotifyWatcher) forget(path string) {
	for dir := range w.dirs {
		if within(dir, path) {
			delete(w.dirs, dir)
		}
	}
}

// covered reports whether a remaining root contains path. Callers hold w.mu.
func (w *FSNotifyWatcher) covered(path string) bool {
	for r := range w.roots {
		if within(path, r) {
			return true
		}
	}
	return false
}

// processLoop handles incoming fsnotify events.
func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handleFSEvent converts and dispatches an fsnotify event.
func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	w.mu.Lock()
	if w.closed || w.ignoredLocked(fsEvent.Name, true) {
		w.mu.Unlock()
		return
	}

	if op.Has(OpRemove) || op.Has(OpRename) {
		w.forget(fsEvent.Name)
	}

	// A new directory is watched rather than reported. Files that landed in
	// it before the watch was added are reported as created.
	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			files, err := w.addTree(fsEvent.Name, true)
			w.mu.Unlock()
			if err != nil {
				w.sendError(err)
			}
			now := time.Now()
			for _, f := range files {
				w.sendEvent(Event{Path: f, Op: OpCreate, Timestamp: now})
			}
			return
		}
	}
	w.mu.Unlock()

	w.sendEvent(Event{
		Path:      fsEvent.Name,
		Op:        op,
		Timestamp: time.Now(),
	})
}

// convertOp converts fsnotify.Op to watcher.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

// ignoredLocked reports whether path is ignored. Paths are matched relative
// to each root containing them, against the global patterns and, for
// reported paths, the root's filters; a path stays visible while any such
// root keeps it. Directories are pruned by the global patterns only, so a
// filter that changes later still sees events below them. Callers hold
// w.mu.
func (w *FSNotifyWatcher) ignoredLocked(path string, filtered bool) bool {
	hidden := false
	for dir, r := range w.roots {
		if !within(path, dir) {
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return false
		}
		rel = filepath.ToSlash(rel)
		if !matchSegments(w.config.IgnorePatterns, rel) && !(filtered && filteredBy(r.filters, rel)) {
			return false
		}
		hidden = true
	}
	return hidden
}

// filteredBy reports whether any filter of a root hides rel.
func filteredBy(filters []Filter, rel string) bool {
	for _, f := range filters {
		if f != nil && f(rel) {
			return true
		}
	}
	return false
}

// matchSegments matches a root-relative path against patterns. Patterns
// without a slash match any path segment.
func matchSegments(patterns []string, path string) bool {
	path = filepath.ToSlash(path)
	segments := strings.Split(path, "/")
	for _, pattern := range patterns {
		if glob.Match(pattern, path) {
			return true
		}
		if strings.Contains(pattern, "/") {
			continue
		}
		for _, segment := range segments {
			if segment != "" && glob.Match(pattern, segment) {
				return true
			}
		}
	}
	return false
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// sendEvent sends an event to the output channel.
func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	default:
		w.sendError(errDropped(event.Path, event.Op))
	}
}

// sendError sends an error to the output channel.
func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

var _ Watcher = (*FSNotifyWatcher)(nil)
