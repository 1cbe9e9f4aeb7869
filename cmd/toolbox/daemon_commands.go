package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"toolbox/internal/daemonctl"
	"toolbox/internal/daemonrun"
	"toolbox/internal/ipc"
	"toolbox/internal/logs"
)

const (
	daemonStopGrace = 5 * time.Second
	daemonStartWait = 10 * time.Second
	logFollowWait   = 2 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the toolbox daemon",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the toolbox daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg.SocketPath(), exe, daemonLaunchOptions(ctx), daemonStartWait)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the toolbox daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), cfg, daemonStopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the toolbox daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Restart(cmd.Context(), cfg, exe, daemonLaunchOptions(ctx), daemonStopGrace, daemonStartWait)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.configPath,
				LogLevel:    ctx.logLevel(cfg),
				Development: development,
			})
		},
	}
	runCmd.Flags().BoolVar(&development, "development", false, "Enable development logging (source locations)")

	daemonCmd.AddCommand(startCmd, stopCmd, restartCmd, runCmd, newDaemonLogsCommand(ctx))
	return daemonCmd
}

func newDaemonLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var match string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tail := localLogTail(cfg.LogFilePath())
			if !ctx.localOnly() {
				if client, dialErr := ipc.Dial(cfg.SocketPath()); dialErr == nil {
					defer client.Close()
					tail = remoteLogTail(client)
				}
			}

			out := cmd.OutOrStdout()
			req := ipc.LogTailRequest{Offset: -1, Limit: lines, Match: strings.TrimSpace(match)}
			for {
				resp, err := tail(runCtx, req)
				if err != nil {
					if runCtx.Err() != nil {
						return nil
					}
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				if runCtx.Err() != nil {
					return nil
				}
				req = ipc.LogTailRequest{
					Offset:     resp.Offset,
					Follow:     true,
					WaitMillis: int(logFollowWait / time.Millisecond),
					Match:      req.Match,
				}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&match, "match", "", "Only print lines containing this text (for example a request id)")
	return cmd
}

type logTailFunc func(context.Context, ipc.LogTailRequest) (ipc.LogTailResponse, error)

func remoteLogTail(client *ipc.Client) logTailFunc {
	return func(ctx context.Context, req ipc.LogTailRequest) (ipc.LogTailResponse, error) {
		resp, err := client.LogTail(ctx, req)
		if err != nil {
			return ipc.LogTailResponse{}, err
		}
		return *resp, nil
	}
}

func localLogTail(path string) logTailFunc {
	return func(ctx context.Context, req ipc.LogTailRequest) (ipc.LogTailResponse, error) {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: req.Offset,
			Limit:  req.Limit,
			Follow: req.Follow,
			Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
			Match:  req.Match,
		})
		if err != nil {
			return ipc.LogTailResponse{Offset: result.Offset}, err
		}
		return ipc.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
	}
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath}
	if ctx.configFlag != nil {
		if cfg := strings.TrimSpace(*ctx.configFlag); cfg != "" {
			if expanded, err := resolvePath(cfg); err == nil {
				opts.ConfigPath = expanded
			}
		}
	}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
