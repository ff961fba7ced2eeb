package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/deployd/internal/config/loader"
)

// ErrAlreadyConfigured is returned by init when a deploy section exists.
var ErrAlreadyConfigured = errors.New("deploy section already exists")

// starterSection is the deploy section written by init.
const starterSection = `{
	"packages": [
		{
			"name": "site",
			"files": ["**"],
			"exclude": [".git/**", ".vscode/**"],
			"targets": ["preview"],
			"deployOnChange": true
		}
	],
	"targets": [
		{
			"name": "preview",
			"type": "test",
			"description": "Logs what would be deployed"
		}
	]
}`

func newInitCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [folder]",
		Short: "Write a starter deploy section into the folder's editor settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := "."
			if len(args) == 1 {
				folder = args[0]
			}
			path := filepath.Join(folder, filepath.FromSlash(loader.SettingsFile))

			if err := writeStarterSettings(path, force); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing deploy section")
	return cmd
}

// writeStarterSettings sets the deploy section of the settings file at path,
// keeping every other key. Comments in an existing file are not preserved.
func writeStarterSettings(path string, force bool) error {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = []byte("{}")
	case err != nil:
		return err
	default:
		data = jsonc.ToJSON(data)
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%s: invalid JSON", path)
		}
	}

	if gjson.GetBytes(data, loader.Section).Exists() && !force {
		return fmt.Errorf("%w in %s", ErrAlreadyConfigured, path)
	}

	data, err = sjson.SetRawBytes(data, loader.Section, []byte(starterSection))
	if err != nil {
		return err
	}
	data = pretty.PrettyOptions(data, &pretty.Options{Indent: "\t", Width: 80})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
