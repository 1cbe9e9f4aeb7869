package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Run a remote inference job and wait for its output",
	}
	jobCmd.AddCommand(
		newJobBackendCommand(ctx, api.BackendReplicate, "Run a Replicate prediction", "Model version id"),
		newJobBackendCommand(ctx, api.BackendRunPod, "Run a RunPod serverless job", "Endpoint id (default from settings or config)"),
		newJobBackendCommand(ctx, api.BackendFAL, "Run a fal.ai queue request", "Model id, e.g. fal-ai/bria/background/remove"),
	)
	return jobCmd
}

func newJobBackendCommand(ctx *commandContext, backend, short, targetHelp string) *cobra.Command {
	var target, input, token string
	cmd := &cobra.Command{
		Use:   backend,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseJobInput(input)
			if err != nil {
				return err
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.RunJob(cmd.Context(), api.RunJobRequest{
					Backend:    backend,
					Target:     target,
					Input:      payload,
					Credential: token,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %s succeeded after %d poll(s)\n", resp.ID, resp.Attempts)
				fmt.Fprintln(out, resp.Output.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "", targetHelp)
	cmd.Flags().StringVar(&input, "input", "", "Job input as JSON or @file")
	cmd.Flags().StringVar(&token, "token", "", "API key for this job (overrides settings and config)")
	return cmd
}
