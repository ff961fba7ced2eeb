package workspace

import (
	"path/filepath"
	"sync"
)

// Set is the list of workspaces sharing one host. Workspaces add themselves
// on creation and remove themselves on disposal.
type Set struct {
	mu    sync.RWMutex
	items []*Workspace
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{}
}

func (s *Set) add(w *Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, w)
}

func (s *Set) remove(w *Workspace) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item == w {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// All returns the workspaces in creation order.
func (s *Set) All() []*Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Workspace, len(s.items))
	copy(result, s.items)
	return result
}

// Len returns the number of workspaces.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the workspace rooted exactly at path.
func (s *Set) Get(path string) (*Workspace, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	for _, w := range s.All() {
		if w.Root() == absPath {
			return w, true
		}
	}
	return nil, false
}

// Owner returns the workspace a path belongs to. With nested roots the
// deepest one wins. Relative paths have no owner.
func (s *Set) Owner(path string) (*Workspace, bool) {
	if !filepath.IsAbs(path) {
		return nil, false
	}

	var owner *Workspace
	for _, w := range s.All() {
		if w.IsPathOf(path) && (owner == nil || len(w.Root()) > len(owner.Root())) {
			owner = w
		}
	}
	return owner, owner != nil
}
