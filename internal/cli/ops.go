package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/deployd/internal/entity"
	"github.com/dshills/deployd/internal/host"
	"github.com/dshills/deployd/internal/ops"
	"github.com/dshills/deployd/internal/workspace"
)

// ErrPackageNotFound is returned when a named package exists in no folder.
var ErrPackageNotFound = errors.New("package not found")

// opCommand describes one of the deploy, pull and delete commands.
type opCommand struct {
	use   string
	short string
	verb  string

	pkg   func(ctx context.Context, ws *workspace.Workspace, pkg entity.Package, targets ...entity.Target) error
	files func(ctx context.Context, ws *workspace.Workspace, files []string, target entity.Target) error
}

func newDeployCmd(opts *options) *cobra.Command {
	return newOpCmd(opts, opCommand{
		use:   "deploy [package...]",
		short: "Deploy packages or files to their targets",
		verb:  "deployed",
		pkg: func(ctx context.Context, ws *workspace.Workspace, pkg entity.Package, targets ...entity.Target) error {
			return ws.DeployPackage(ctx, pkg, targets...)
		},
		files: func(ctx context.Context, ws *workspace.Workspace, files []string, target entity.Target) error {
			var errs []error
			for _, file := range files {
				errs = append(errs, ws.DeployFileTo(ctx, file, target))
			}
			return errors.Join(errs...)
		},
	})
}

func newPullCmd(opts *options) *cobra.Command {
	return newOpCmd(opts, opCommand{
		use:   "pull [package...]",
		short: "Pull packages or files from their targets",
		verb:  "pulled",
		pkg: func(ctx context.Context, ws *workspace.Workspace, pkg entity.Package, targets ...entity.Target) error {
			return ws.PullPackage(ctx, pkg, targets...)
		},
		files: func(ctx context.Context, ws *workspace.Workspace, files []string, target entity.Target) error {
			return ws.PullFilesFrom(ctx, files, target)
		},
	})
}

func newDeleteCmd(opts *options) *cobra.Command {
	return newOpCmd(opts, opCommand{
		use:   "delete [package...]",
		short: "Delete packages or files from their targets",
		verb:  "deleted",
		pkg: func(ctx context.Context, ws *workspace.Workspace, pkg entity.Package, targets ...entity.Target) error {
			return ws.DeletePackage(ctx, pkg, targets...)
		},
		files: func(ctx context.Context, ws *workspace.Workspace, files []string, target entity.Target) error {
			var errs []error
			for _, file := range files {
				errs = append(errs, ws.DeleteFileIn(ctx, file, target))
			}
			return errors.Join(errs...)
		},
	})
}

func newOpCmd(opts *options, oc opCommand) *cobra.Command {
	var (
		targetNames []string
		files       []string
	)

	cmd := &cobra.Command{
		Use:   oc.use,
		Short: oc.short,
		Long: oc.short + `.

Without arguments every package of every folder is processed. Targets default
to each package's "targets" list. With --file, the given files are sent to the
targets named by --target.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) > 0 && len(args) > 0 {
				return errors.New("--file cannot be combined with package names")
			}
			if len(files) > 0 && len(targetNames) == 0 {
				return errors.New("--target is required with --file")
			}

			h, err := openHost(cmd, opts)
			if err != nil {
				return err
			}
			defer h.Close()

			if len(files) > 0 {
				return runFiles(cmd, h, oc, files, targetNames)
			}
			return runPackages(cmd, h, oc, args, targetNames)
		},
	}

	cmd.Flags().StringSliceVarP(&targetNames, "target", "t", nil, "Target name (repeatable)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "File to process instead of packages (repeatable)")
	return cmd
}

// runPackages applies oc to the named packages, or to every package.
func runPackages(cmd *cobra.Command, h *host.Host, oc opCommand, names, targetNames []string) error {
	ctx := cmd.Context()
	found := make(map[string]bool, len(names))

	var errs []error
	for _, ws := range h.Workspaces() {
		targets, err := lookupTargets(ws, targetNames)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, pkg := range ws.Packages() {
			if len(names) > 0 && !contains(names, pkg.Name()) {
				continue
			}
			found[pkg.Name()] = true

			if err := oc.pkg(ctx, ws, pkg, targets...); err != nil {
				errs = append(errs, err)
				continue
			}
			printSuccess(cmd.OutOrStdout(), "%s %s (%s)", oc.verb, pkg.Name(), ws.Name())
		}
	}

	for _, name := range names {
		if !found[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrPackageNotFound, name))
		}
	}
	return errors.Join(errs...)
}

// runFiles applies oc to files grouped by their owning workspace.
func runFiles(cmd *cobra.Command, h *host.Host, oc opCommand, files, targetNames []string) error {
	ctx := cmd.Context()

	byRoot := make(map[string][]string)
	var (
		order []*workspace.Workspace
		errs  []error
	)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ws, ok := h.OwnerOf(abs)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ops.ErrNotInWorkspace, file))
			continue
		}
		if _, seen := byRoot[ws.Root()]; !seen {
			order = append(order, ws)
		}
		byRoot[ws.Root()] = append(byRoot[ws.Root()], abs)
	}

	for _, ws := range order {
		targets, err := lookupTargets(ws, targetNames)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, target := range targets {
			if err := oc.files(ctx, ws, byRoot[ws.Root()], target); err != nil {
				errs = append(errs, err)
				continue
			}
			printSuccess(cmd.OutOrStdout(), "%s %d file(s) (%s: %s)", oc.verb, len(byRoot[ws.Root()]), ws.Name(), target.Name())
		}
	}
	return errors.Join(errs...)
}

// lookupTargets resolves target names in ws. No names yields no targets.
func lookupTargets(ws *workspace.Workspace, names []string) ([]entity.Target, error) {
	targets := make([]entity.Target, 0, len(names))
	for _, name := range names {
		t, ok := ws.TargetByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s", ops.ErrTargetNotFound, name, ws.Name())
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
