package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPackagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the packages of every folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd, opts)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			for _, ws := range h.Workspaces() {
				printHeader(out, fmt.Sprintf("%s (%s)", ws.Name(), ws.Config().Source()))
				pkgs := ws.Packages()
				if len(pkgs) == 0 {
					printEntry(out, "(none)", "")
					continue
				}
				for _, pkg := range pkgs {
					detail := pkg.Description()
					if targets := pkg.TargetNames(); len(targets) > 0 {
						detail = strings.TrimSpace(detail + " -> " + strings.Join(targets, ", "))
					}
					printEntry(out, pkg.Name(), detail)
				}
			}
			return nil
		},
	}
}

func newTargetsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the targets of every folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd, opts)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			for _, ws := range h.Workspaces() {
				printHeader(out, fmt.Sprintf("%s (%s)", ws.Name(), ws.Config().Source()))
				targets := ws.Targets()
				if len(targets) == 0 {
					printEntry(out, "(none)", "")
					continue
				}
				for _, t := range targets {
					detail := "[" + t.Type() + "]"
					if _, ok := h.Registry().Lookup(t.Type()); !ok {
						detail += " unknown type"
					}
					if desc := t.Description(); desc != "" {
						detail += " " + desc
					}
					printEntry(out, t.Name(), detail)
				}
			}
			return nil
		},
	}
}
