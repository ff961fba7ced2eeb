package entity

import (
	"fmt"

	"github.com/dshills/deployd/internal/config/tree"
)

// Settings keys of package and target entries.
const (
	KeyName           = "name"
	KeyDescription    = "description"
	KeyType           = "type"
	KeyFiles          = "files"
	KeyExclude        = "exclude"
	KeyTargets        = "targets"
	KeyDeployOnChange = "deployOnChange"
	KeyDeleteOnRemove = "deleteOnRemove"
)

// DefaultFiles is the include glob of a package without "files".
const DefaultFiles = "**"

// Package is a named group of files with deployment options.
type Package struct {
	Record
}

// Target is a destination handled by a plugin selected by its type.
type Target struct {
	Record
}

// Packages materializes the packages of a settings snapshot.
func Packages(raw any, owner Owner) []Package {
	records := Materialize(raw, owner)
	out := make([]Package, len(records))
	for i, r := range records {
		out[i] = Package{Record: r}
	}
	return out
}

// Targets materializes the targets of a settings snapshot.
func Targets(raw any, owner Owner) []Target {
	records := Materialize(raw, owner)
	out := make([]Target, len(records))
	for i, r := range records {
		out[i] = Target{Record: r}
	}
	return out
}

// Name returns the configured name or "Package #N".
func (p Package) Name() string {
	if name := p.GetString(KeyName); name != "" {
		return name
	}
	return fmt.Sprintf("Package #%d", p.Index+1)
}

// Description returns the package description.
func (p Package) Description() string {
	return p.GetString(KeyDescription)
}

// Files returns the include globs, defaulting to every file.
func (p Package) Files() []string {
	if files := p.GetStrings(KeyFiles); len(files) > 0 {
		return files
	}
	return []string{DefaultFiles}
}

// Exclude returns the exclude globs.
func (p Package) Exclude() []string {
	return p.GetStrings(KeyExclude)
}

// TargetNames returns the names of the package's default targets.
func (p Package) TargetNames() []string {
	return p.GetStrings(KeyTargets)
}

// DeployOnChange returns which targets receive a file of the package when it
// changes: all=true for every default target, or explicit names.
func (p Package) DeployOnChange() (all bool, names []string) {
	return tree.Selector(p.Payload, KeyDeployOnChange)
}

// DeleteOnRemove returns which targets lose a file of the package when it is
// deleted locally.
func (p Package) DeleteOnRemove() (all bool, names []string) {
	return tree.Selector(p.Payload, KeyDeleteOnRemove)
}

// Name returns the configured name or "Target #N".
func (t Target) Name() string {
	if name := t.GetString(KeyName); name != "" {
		return name
	}
	return fmt.Sprintf("Target #%d", t.Index+1)
}

// Type returns the plugin type handling the target.
func (t Target) Type() string {
	return t.GetString(KeyType)
}

// Description returns the target description.
func (t Target) Description() string {
	return t.GetString(KeyDescription)
}

// Option returns a plugin-specific option.
func (t Target) Option(key string) (any, bool) {
	return t.Value(key)
}
