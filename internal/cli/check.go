package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/deployd/internal/config/schema"
)

// ErrInvalidSettings is returned by check when any folder has issues.
var ErrInvalidSettings = errors.New("invalid deploy settings")

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the deploy settings of every folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd, opts)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			invalid := 0
			for _, ws := range h.Workspaces() {
				err := ws.Validate()
				if err == nil {
					printSuccess(out, "%s: ok", ws.Name())
					continue
				}

				var verrs *schema.ValidationErrors
				if !errors.As(err, &verrs) {
					return err
				}
				invalid++
				printHeader(out, fmt.Sprintf("%s (%s)", ws.Name(), ws.Config().Source()))
				for _, e := range verrs.Errors {
					printEntry(out, e.Path, e.Message)
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%w in %d folder(s)", ErrInvalidSettings, invalid)
			}
			return nil
		},
	}
}
