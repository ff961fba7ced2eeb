package workspace

import (
	"path/filepath"
	"strings"
)

// Folder identifies the directory a workspace is rooted at.
type Folder struct {
	// Path is the absolute, cleaned local file system path
	Path string
	// Name is the display name for the folder
	Name string
}

// NewFolder resolves path to an absolute folder reference.
func NewFolder(path string) (Folder, error) {
	if strings.TrimSpace(path) == "" {
		return Folder{}, ErrInvalidPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Folder{}, err
	}

	return Folder{
		Path: absPath,
		Name: filepath.Base(absPath),
	}, nil
}

// isSubPath checks if child is parent or lies below it.
func isSubPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)

	if child == parent {
		return true
	}

	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}
