package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
	"toolbox/internal/daemonctl"
	"toolbox/internal/deps"
	"toolbox/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and task history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg, ctx.configPath)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			printStatus(out, status, shouldColorize(out))
			return nil
		},
	}
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries (ffmpeg, ffprobe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, line := range dependencyLines(statuses, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
			}
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %v", missing)
			}
			return nil
		},
	}
}

func newCheckPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check-path <path>",
		Short: "Report whether a path exists and is a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.CheckPathIsDirectory(cmd.Context(), api.CheckPathRequest{Path: path})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.IsDirectory:
					fmt.Fprintf(out, "%s is a directory\n", path)
				case resp.Exists:
					fmt.Fprintf(out, "%s exists but is not a directory\n", path)
				default:
					fmt.Fprintf(out, "%s does not exist\n", path)
				}
				return nil
			})
		},
	}
}
