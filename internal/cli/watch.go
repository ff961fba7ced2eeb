package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Deploy changed files until interrupted",
		Long: `Watch every folder and apply the packages' "deployOnChange" and
"deleteOnRemove" settings to changed files. Edits to a folder's settings file
reload its configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			h, err := openHost(cmd, opts)
			if err != nil {
				return err
			}
			defer h.Close()

			err = h.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
