// Package cli implements the deployd command line.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/deployd/internal/retry"
	"github.com/dshills/deployd/internal/watcher"
)

// options are the global flags shared by every command.
type options struct {
	folders       []string
	workspaceFile string

	logLevel  string
	logFormat string

	reloadDelay    time.Duration
	reloadAttempts int
	changeDelay    time.Duration
	changeAttempts int
	debounce       time.Duration
	watchIgnore    []string
}

// NewRootCmd builds the deployd command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "deployd",
		Version: version,
		Short:   "Deploy workspace folders to their configured targets",
		Long: `deployd reads the "deploy" settings of one or more workspace folders and
sends packages and single files to the targets they name. In watch mode,
changed files are deployed and deleted files removed as configured per package.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.folders, "folder", "f", nil, "Workspace folder (repeatable, default: current directory)")
	flags.StringVarP(&opts.workspaceFile, "workspace", "w", "", "Load folders from a .code-workspace file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	flags.DurationVar(&opts.reloadDelay, "reload-retry-delay", retry.DefaultDelay, "Delay before retrying a busy configuration reload")
	flags.IntVar(&opts.reloadAttempts, "reload-max-attempts", retry.DefaultMaxAttempts, "Maximum configuration reload retries (negative for unbounded)")
	flags.DurationVar(&opts.changeDelay, "change-retry-delay", retry.DefaultDelay, "Delay before retrying a change of a busy file")
	flags.IntVar(&opts.changeAttempts, "change-max-attempts", retry.DefaultMaxAttempts, "Maximum change retries per file (negative for unbounded)")
	flags.DurationVar(&opts.debounce, "debounce", watcher.DefaultConfig().DebounceDelay, "Coalescing window for file system events")
	flags.StringSliceVar(&opts.watchIgnore, "watch-ignore", watcher.DefaultConfig().IgnorePatterns, "Directories and files the watcher never reports, in every folder")

	root.AddCommand(
		newWatchCmd(opts),
		newDeployCmd(opts),
		newPullCmd(opts),
		newDeleteCmd(opts),
		newPackagesCmd(opts),
		newTargetsCmd(opts),
		newCheckCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line with args.
func Execute(ctx context.Context, version string, args []string) error {
	root := NewRootCmd(version)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deployd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cmd.Root().Version)
		},
	}
}
