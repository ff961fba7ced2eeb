package host

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// WorkspaceFile is the folder list of a .code-workspace file.
type WorkspaceFile struct {
	// Folders is the list of workspace folders.
	Folders []WorkspaceFolderEntry `json:"folders"`

	// Settings contains workspace-level settings.
	Settings map[string]any `json:"settings,omitempty"`
}

// WorkspaceFolderEntry is a folder entry of a workspace file.
type WorkspaceFolderEntry struct {
	// Path is the folder path, relative to the workspace file or absolute.
	Path string `json:"path"`

	// Name is an optional display name for the folder.
	Name string `json:"name,omitempty"`
}

// LoadWorkspaceFile reads a .code-workspace file. Comments and trailing
// commas are accepted.
func LoadWorkspaceFile(path string) (*WorkspaceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wsFile WorkspaceFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &wsFile); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &wsFile, nil
}

// FolderPaths returns the absolute folder paths of a workspace file located
// at path, in file order.
func (f *WorkspaceFile) FolderPaths(path string) []string {
	baseDir := filepath.Dir(path)

	paths := make([]string, 0, len(f.Folders))
	for _, entry := range f.Folders {
		if entry.Path == "" {
			continue
		}
		p := filepath.FromSlash(entry.Path)
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		paths = append(paths, filepath.Clean(p))
	}
	return paths
}
