package loader

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
)

// Section is the settings section read by the deploy core.
const Section = "deploy"

// Settings file names, relative to a workspace folder, in probe order.
const (
	TOMLFile     = ".deploy.toml"
	YAMLFile     = ".deploy.yaml"
	YMLFile      = ".deploy.yml"
	SettingsFile = ".vscode/settings.json"
)

// Store is the backing configuration store. It resolves the deploy section
// for a folder from the first settings file present in that folder.
type Store struct {
	fs      FileSystem
	section string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFileSystem sets the file system used by the store.
func WithFileSystem(fsys FileSystem) StoreOption {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithSection sets the key read from editor settings files.
func WithSection(section string) StoreOption {
	return func(s *Store) {
		if section != "" {
			s.section = section
		}
	}
}

// NewStore creates a store reading from the OS file system.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		fs:      DefaultFS(),
		section: Section,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Files returns the candidate settings files for folder in probe order.
func (s *Store) Files(folder string) []string {
	return []string{
		filepath.Join(folder, TOMLFile),
		filepath.Join(folder, YAMLFile),
		filepath.Join(folder, YMLFile),
		filepath.Join(folder, filepath.FromSlash(SettingsFile)),
	}
}

// IsSettingsFile reports whether path is one of folder's candidate files.
func (s *Store) IsSettingsFile(folder, path string) bool {
	path = filepath.Clean(path)
	for _, f := range s.Files(folder) {
		if f == path {
			return true
		}
	}
	return false
}

// Source returns the settings file currently backing folder, or "" if none exists.
func (s *Store) Source(folder string) string {
	for _, f := range s.Files(folder) {
		if _, err := s.fs.Stat(f); err == nil {
			return f
		}
	}
	return ""
}

// Load reads the deploy section for folder.
// It returns nil, nil when no settings file exists.
func (s *Store) Load(ctx context.Context, folder string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, path := range s.Files(folder) {
		if _, err := s.fs.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return s.loaderFor(path).Load()
	}
	return nil, nil
}

// loaderFor picks the loader for a candidate file.
func (s *Store) loaderFor(path string) Loader {
	switch filepath.Ext(path) {
	case ".toml":
		return NewTOMLLoaderWithFS(s.fs, path)
	case ".yaml", ".yml":
		return NewYAMLLoaderWithFS(s.fs, path)
	default:
		return NewSettingsLoaderWithFS(s.fs, path, s.section)
	}
}
