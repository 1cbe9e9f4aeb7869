package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"toolbox/internal/api"
	"toolbox/internal/ipc"
	"toolbox/internal/tasks"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect recorded task history",
	}

	var statuses []string
	var kind string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range statuses {
				if _, ok := tasks.ParseStatus(raw); !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
			}
			return ctx.withOperations(cmd, func(ops operations) error {
				resp, err := ops.Tasks(cmd.Context(), api.TasksRequest{Statuses: statuses, Kind: kind, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(out, "No tasks recorded")
					return nil
				}
				fmt.Fprint(out, renderTaskTable(resp.Tasks))
				return nil
			})
		},
	}
	listCmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, running, completed, failed)")
	listCmd.Flags().StringVar(&kind, "kind", "", "Filter by task kind")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of tasks to show (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := tasks.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task history: %w", err)
			}
			defer store.Close()

			item, err := describeTask(cmd, api.NewTaskService(store), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, item)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPairs(taskPairs(*item)))
			return nil
		},
	}

	var clearAll bool
	var olderThan time.Duration
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished tasks from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll && olderThan > 0 {
				return fmt.Errorf("--all and --older-than are mutually exclusive")
			}
			removed, err := clearTasks(cmd, ctx, clearAll, olderThan)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ipc.ClearTasksResponse{Removed: removed})
			}
			label := "finished tasks"
			if clearAll {
				label = "tasks"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Remove every task, including pending and running ones")
	clearCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove finished tasks last updated before this age (e.g. 720h)")

	tasksCmd.AddCommand(listCmd, showCmd, clearCmd)
	return tasksCmd
}

func clearTasks(cmd *cobra.Command, ctx *commandContext, all bool, olderThan time.Duration) (int64, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return 0, err
	}
	// Age-based pruning goes straight to the store; the RPC only knows finished/all.
	if !ctx.localOnly() && olderThan <= 0 {
		if client, dialErr := ipc.Dial(cfg.SocketPath()); dialErr == nil {
			defer client.Close()
			resp, err := client.ClearTasks(cmd.Context(), all)
			if err != nil {
				return 0, err
			}
			return resp.Removed, nil
		}
	}
	store, err := tasks.Open(cfg)
	if err != nil {
		return 0, fmt.Errorf("open task history: %w", err)
	}
	defer store.Close()
	if olderThan > 0 {
		return store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
	}
	if all {
		return store.ClearAll(cmd.Context())
	}
	return store.ClearFinished(cmd.Context())
}

// describeTask resolves a full id or the short prefix printed by `tasks list`.
func describeTask(cmd *cobra.Command, svc *api.TaskService, id string) (*api.TaskItem, error) {
	item, err := svc.Describe(cmd.Context(), id)
	if err != nil || item != nil {
		return item, err
	}
	if id == "" {
		return nil, fmt.Errorf("task id required")
	}
	all, err := svc.List(cmd.Context(), api.TasksRequest{})
	if err != nil {
		return nil, err
	}
	var match *api.TaskItem
	for i := range all {
		if !strings.HasPrefix(all[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("task id %q is ambiguous", id)
		}
		match = &all[i]
	}
	if match == nil {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return match, nil
}

var titleCaser = cases.Title(language.English)

// taskLabel turns a stored identifier such as "convert_all" into "Convert All".
func taskLabel(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
	if raw == "" {
		return "-"
	}
	return titleCaser.String(raw)
}

func renderTaskTable(items []api.TaskItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			taskLabel(item.Kind),
			taskLabel(item.Status),
			truncate(item.Target, 40),
			formatDuration(item.DurationMS),
			item.CreatedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "Status", "Target", "Duration", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func taskPairs(item api.TaskItem) [][2]string {
	pairs := [][2]string{
		{"ID", item.ID},
		{"Kind", taskLabel(item.Kind)},
		{"Status", taskLabel(item.Status)},
		{"Target", valueOrDash(item.Target)},
		{"Message", valueOrDash(item.Message)},
		{"Error kind", valueOrDash(item.ErrorKind)},
		{"Request ID", valueOrDash(item.RequestID)},
		{"Created", valueOrDash(item.CreatedAt)},
		{"Updated", valueOrDash(item.UpdatedAt)},
		{"Duration", formatDuration(item.DurationMS)},
	}
	return pairs
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return "..." + s[len(s)-(max-3):]
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return d.Round(100 * time.Millisecond).String()
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
