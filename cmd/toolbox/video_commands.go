package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
	"toolbox/internal/transcode"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Run ffmpeg video tools",
	}

	var loopDuration string
	var loopCount int
	var loopOutput string
	loopCmd := &cobra.Command{
		Use:   "loop <input>",
		Short: "Repeat a video for a duration or a number of loops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RunTranscodeRequest{Op: transcode.OpLoop, Input: args[0], Output: loopOutput}
			switch {
			case strings.TrimSpace(loopDuration) != "" && cmd.Flags().Changed("count"):
				return fmt.Errorf("use either --duration or --count, not both")
			case cmd.Flags().Changed("count"):
				req.Mode = transcode.LoopByCount
				req.LoopCount = loopCount
			default:
				req.Mode = transcode.LoopByDuration
				req.Duration = loopDuration
			}
			return runTranscode(cmd, ctx, req)
		},
	}
	loopCmd.Flags().StringVar(&loopDuration, "duration", "", "Total duration as HH:MM:SS, MM:SS, or seconds")
	loopCmd.Flags().IntVar(&loopCount, "count", 0, "Number of times to play the input")
	loopCmd.Flags().StringVarP(&loopOutput, "output", "o", "", "Output path (default derived from input)")

	var reverseOutput string
	reverseCmd := &cobra.Command{
		Use:   "reverse <input>",
		Short: "Reverse a video and its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, ctx, api.RunTranscodeRequest{Op: transcode.OpReverse, Input: args[0], Output: reverseOutput})
		},
	}
	reverseCmd.Flags().StringVarP(&reverseOutput, "output", "o", "", "Output path (default derived from input)")

	var extractOutput string
	extractCmd := &cobra.Command{
		Use:   "extract-audio <input>",
		Short: "Extract the audio track as WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, ctx, api.RunTranscodeRequest{Op: transcode.OpExtractAudio, Input: args[0], Output: extractOutput})
		},
	}
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output path (default derived from input)")

	var overlayOutput string
	overlayCmd := &cobra.Command{
		Use:   "overlay-audio <video> <audio>",
		Short: "Replace a video's audio track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, ctx, api.RunTranscodeRequest{
				Op:     transcode.OpOverlayAudio,
				Input:  args[0],
				Audio:  args[1],
				Output: overlayOutput,
			})
		},
	}
	overlayCmd.Flags().StringVarP(&overlayOutput, "output", "o", "", "Output path (default derived from input)")

	videoCmd.AddCommand(loopCmd, reverseCmd, extractCmd, overlayCmd)
	return videoCmd
}

func runTranscode(cmd *cobra.Command, ctx *commandContext, req api.RunTranscodeRequest) error {
	var err error
	if req.Input, err = resolvePath(req.Input); err != nil {
		return err
	}
	if req.Audio, err = resolvePath(req.Audio); err != nil {
		return err
	}
	if req.Output, err = resolvePath(req.Output); err != nil {
		return err
	}
	return ctx.withOperations(cmd, func(ops operations) error {
		resp, err := ops.RunTranscode(cmd.Context(), req)
		if err != nil {
			return err
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", resp.Output)
		return nil
	})
}
