package ops

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/glob"
)

// PackageFiles returns the absolute paths of the regular files below the
// workspace root selected by pkg's globs and not matched by ignore. The
// result is sorted.
func PackageFiles(ctx context.Context, root string, pkg entity.Package, ignore []string) ([]string, error) {
	filter := glob.Filter{
		Include: pkg.Files(),
		Exclude: append(append([]string(nil), pkg.Exclude()...), ignore...),
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if glob.MatchAny(ignore, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.Matches(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
