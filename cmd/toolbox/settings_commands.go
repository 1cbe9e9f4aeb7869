package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
	"toolbox/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit stored API keys",
	}

	var reveal bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored API keys (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.LoadSettings(cmd.Context(), api.LoadSettingsRequest{})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if !reveal {
						resp.Settings.APIKeys = maskedKeys(resp.Settings.APIKeys)
					}
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Settings file: %s\n", resp.Path)
				pairs := make([][2]string, 0, len(settings.KeyNames))
				for _, name := range settings.KeyNames {
					value, _ := resp.Settings.APIKeys.Get(name)
					if !reveal {
						value = settings.Mask(value)
					}
					if value == "" {
						value = "-"
					}
					pairs = append(pairs, [2]string{name, value})
				}
				fmt.Fprint(out, renderPairs(pairs))
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "Print keys unmasked")

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store one API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOperations(cmd, func(ops operations) error {
				current, err := ops.LoadSettings(cmd.Context(), api.LoadSettingsRequest{})
				if err != nil {
					return err
				}
				updated := current.Settings
				if err := updated.APIKeys.Set(args[0], args[1]); err != nil {
					return err
				}
				resp, err := ops.SaveSettings(cmd.Context(), api.SaveSettingsRequest{Settings: updated})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", args[0], resp.Path)
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge API keys from a keys file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.ImportKeys(cmd.Context(), api.KeysFileRequest{Path: path})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d key(s)\n", resp.Count)
				return nil
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write stored API keys to a keys file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.ExportKeys(cmd.Context(), api.KeysFileRequest{Path: path})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d key(s) to %s\n", resp.Count, path)
				return nil
			})
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd, importCmd, exportCmd)
	return settingsCmd
}

func maskedKeys(keys settings.APIKeys) settings.APIKeys {
	var out settings.APIKeys
	for _, name := range settings.KeyNames {
		value, _ := keys.Get(name)
		_ = out.Set(name, settings.Mask(value))
	}
	return out
}
