package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// SettingsLoader reads one key of an editor settings file (JSON with
// comments and trailing commas), e.g. the "deploy" key of
// .vscode/settings.json.
type SettingsLoader struct {
	fs   FileSystem
	path string
	key  string
}

// NewSettingsLoader creates a loader for key inside the settings file at path.
func NewSettingsLoader(path, key string) *SettingsLoader {
	return NewSettingsLoaderWithFS(DefaultFS(), path, key)
}

// NewSettingsLoaderWithFS creates a settings loader with a custom file system.
func NewSettingsLoaderWithFS(fs FileSystem, path, key string) *SettingsLoader {
	return &SettingsLoader{fs: fs, path: path, key: key}
}

// Load reads the key from the configured path.
func (l *SettingsLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads the key from a specific settings file.
// A missing file or a missing key yields nil, nil.
func (l *SettingsLoader) LoadFrom(path string) (map[string]any, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	return l.parse(path, data)
}

// LoadFromReader reads the key from a reader.
func (l *SettingsLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return l.parse("<reader>", data)
}

func (l *SettingsLoader) parse(source string, data []byte) (map[string]any, error) {
	stripped := jsonc.ToJSON(data)
	if !gjson.ValidBytes(stripped) {
		var syntaxErr *json.SyntaxError
		err := json.Unmarshal(stripped, new(any))
		if errors.As(err, &syntaxErr) {
			return nil, &ParseError{Path: source, Message: syntaxErr.Error(), Err: err}
		}
		return nil, &ParseError{Path: source, Message: "invalid JSON"}
	}

	result := gjson.GetBytes(stripped, gjson.Escape(l.key))
	if !result.Exists() {
		return nil, nil
	}
	if !result.IsObject() {
		return nil, &ParseError{
			Path:    source,
			Message: fmt.Sprintf("%q must be an object, got %s", l.key, result.Type),
		}
	}

	section, ok := result.Value().(map[string]any)
	if !ok {
		return nil, &ParseError{Path: source, Message: fmt.Sprintf("%q is not an object", l.key)}
	}
	return section, nil
}
