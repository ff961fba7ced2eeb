package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps target types to plugins. It is safe for concurrent use and
// shared by every workspace of a host.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin under its type.
func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Type() == "" {
		return ErrInvalidPlugin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Type()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, p.Type())
	}
	r.plugins[p.Type()] = p
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(p Plugin) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Unregister removes the plugin of the given type.
func (r *Registry) Unregister(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[typ]; !exists {
		return false
	}
	delete(r.plugins, typ)
	return true
}

// Lookup returns the plugin handling typ.
func (r *Registry) Lookup(typ string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[typ]
	return p, ok
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.plugins))
	for typ := range r.plugins {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
