package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/deployd/internal/host"
	"github.com/dshills/deployd/internal/retry"
)

// ErrNoWorkspace is returned when no folder could be opened.
var ErrNoWorkspace = errors.New("no workspace folder")

// newLogger builds the output sink selected by the log flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}
}

// openHost creates a host and adds the folders selected by the flags.
// Folders that fail to open are logged and skipped.
func openHost(cmd *cobra.Command, opts *options) (*host.Host, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return nil, err
	}

	h, err := host.New(
		host.WithLogger(logger),
		host.WithReloadPolicy(retry.Policy{Delay: opts.reloadDelay, MaxAttempts: opts.reloadAttempts}),
		host.WithChangePolicy(retry.Policy{Delay: opts.changeDelay, MaxAttempts: opts.changeAttempts}),
		host.WithDebounce(opts.debounce),
		host.WithWatchIgnore(opts.watchIgnore...),
	)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if opts.workspaceFile != "" {
		if _, err := h.AddWorkspaceFile(ctx, opts.workspaceFile); err != nil {
			logger.Warn("workspace file", "path", opts.workspaceFile, "error", err)
		}
	}

	folders := opts.folders
	if len(folders) == 0 && opts.workspaceFile == "" {
		folders = []string{"."}
	}
	for _, folder := range folders {
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			logger.Warn("open folder", "path", folder, "error", "not a directory")
			continue
		}
		if _, err := h.AddFolder(ctx, folder); err != nil {
			logger.Warn("open folder", "path", folder, "error", err)
		}
	}

	if len(h.Workspaces()) == 0 {
		_ = h.Close()
		return nil, ErrNoWorkspace
	}
	return h, nil
}
