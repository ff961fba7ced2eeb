// Package glob matches workspace-relative paths against the glob patterns
// used by package "files"/"exclude" settings and the global "ignore" list.
//
// Patterns use forward slashes and doublestar syntax, so "**" matches any
// number of directories. A pattern without a slash also matches the base
// name of the path, so "*.log" excludes log files at any depth, and a
// pattern naming a directory matches everything below it.
package glob

import (
	stdpath "path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether the workspace-relative path matches pattern.
// Malformed patterns match nothing.
func Match(pattern, path string) bool {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")

	if pattern == "" {
		return false
	}
	if match(pattern, path) {
		return true
	}
	if !strings.Contains(pattern, "/") && match(pattern, stdpath.Base(path)) {
		return true
	}

	dir := strings.TrimSuffix(strings.TrimSuffix(pattern, "/**"), "/")
	if dir == "" || dir == "**" {
		return false
	}
	return match(dir, path) || match(dir+"/**", path)
}

// MatchAny reports whether path matches at least one pattern.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}

// Filter selects files by include and exclude patterns.
type Filter struct {
	Include []string
	Exclude []string
}

// Matches reports whether path is included and not excluded.
// An empty include list includes everything.
func (f Filter) Matches(path string) bool {
	if len(f.Include) > 0 && !MatchAny(f.Include, path) {
		return false
	}
	return !MatchAny(f.Exclude, path)
}

func match(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
