package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
)

func newConvertCommands(ctx *commandContext) []*cobra.Command {
	var sourceExt, target string
	convertCmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Convert every matching image in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.ConvertAll(cmd.Context(), api.ConvertAllRequest{
					Dir:       dir,
					SourceExt: sourceExt,
					Target:    target,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Converted %d file(s), %d failed\n", resp.Report.Converted, resp.Report.Failed)
				for _, msg := range resp.Report.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
				return nil
			})
		},
	}
	convertCmd.Flags().StringVar(&sourceExt, "from", "", "Source extension (default from config)")
	convertCmd.Flags().StringVar(&target, "to", "", "Target format: png or avif (default from config)")

	var oneSourceExt, oneTarget string
	convertOneCmd := &cobra.Command{
		Use:   "convert-one <file>",
		Short: "Convert a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.ConvertOne(cmd.Context(), api.ConvertOneRequest{
					Path:      path,
					SourceExt: oneSourceExt,
					Target:    oneTarget,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", resp.Output)
				return nil
			})
		},
	}
	convertOneCmd.Flags().StringVar(&oneSourceExt, "from", "", "Source extension (default from config)")
	convertOneCmd.Flags().StringVar(&oneTarget, "to", "", "Target format: png or avif (default from config)")

	var cleanExt string
	cleanCmd := &cobra.Command{
		Use:   "clean <dir>",
		Short: "Delete every file in a directory with the given extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.DeleteAllMatching(cmd.Context(), api.DeleteAllMatchingRequest{
					Dir: dir,
					Ext: cleanExt,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d file(s)\n", resp.Deleted)
				return nil
			})
		},
	}
	cleanCmd.Flags().StringVar(&cleanExt, "ext", "", "Extension to delete (default: configured source extension)")

	return []*cobra.Command{convertCmd, convertOneCmd, cleanCmd}
}
