package config

import (
	"github.com/dshills/deployd/internal/config/tree"
)

// Settings keys of the deploy section.
const (
	KeyPackages = "packages"
	KeyTargets  = "targets"
	KeyIgnore   = "ignore"
)

// Config is an immutable snapshot of a folder's deploy settings.
// All accessors return copies; a nil *Config behaves as an empty one.
type Config struct {
	raw    map[string]any
	source string
}

// New creates a snapshot from raw settings. raw is deep-copied.
func New(raw map[string]any, source string) *Config {
	c := &Config{
		raw:    tree.Clone(raw),
		source: source,
	}
	if c.raw == nil {
		c.raw = make(map[string]any)
	}
	return c
}

// Empty returns the snapshot used when nothing could be loaded.
func Empty() *Config {
	return New(nil, "")
}

// Source returns the settings file the snapshot was read from, if known.
func (c *Config) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// IsEmpty reports whether the snapshot holds no settings at all.
func (c *Config) IsEmpty() bool {
	return c == nil || len(c.raw) == 0
}

// Raw returns a deep copy of the whole section.
func (c *Config) Raw() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return tree.Clone(c.raw)
}

// Value returns a deep copy of one top-level setting.
func (c *Config) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.raw[key]
	if !ok {
		return nil, false
	}
	return tree.CloneValue(v), true
}

// Packages returns the raw "packages" setting (absent, object or list).
func (c *Config) Packages() any {
	v, _ := c.Value(KeyPackages)
	return v
}

// Targets returns the raw "targets" setting (absent, object or list).
func (c *Config) Targets() any {
	v, _ := c.Value(KeyTargets)
	return v
}

// Ignore returns the global ignore globs.
func (c *Config) Ignore() []string {
	if c == nil {
		return nil
	}
	return tree.Strings(c.raw, KeyIgnore)
}
