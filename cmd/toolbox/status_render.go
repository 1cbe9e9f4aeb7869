package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"toolbox/internal/api"
	"toolbox/internal/deps"
	"toolbox/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// dependencyLines renders a summary line followed by one line per binary.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+2)
	missingRequired := deps.MissingRequired(statuses)
	switch {
	case len(missingRequired) > 0:
		lines = append(lines, renderStatusLine("Summary", statusError,
			fmt.Sprintf("%d required missing", len(missingRequired)), colorize))
	default:
		lines = append(lines, renderStatusLine("Summary", statusOK, "All required available", colorize))
	}

	var missing []string
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func printStatus(out io.Writer, status *api.StatusResponse, colorize bool) {
	writeLines := func(lines []string) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}

	writeLines(renderSectionHeader("System Status", colorize))
	if status.DaemonRunning {
		msg := "Running"
		if status.PID > 0 {
			msg = "Running (pid " + strconv.Itoa(status.PID) + ")"
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, msg, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	configPath := status.ConfigPath
	if configPath == "" {
		configPath = "defaults (no config file)"
	}
	fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Settings", statusInfo, status.SettingsPath, colorize))
	keys := "none"
	keysKind := statusWarn
	if len(status.ConfiguredKeys) > 0 {
		keys = strings.Join(status.ConfiguredKeys, ", ")
		keysKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("API keys", keysKind, keys, colorize))
	fmt.Fprintln(out)

	writeLines(renderSectionHeader("Dependencies", colorize))
	writeLines(dependencyLines(status.Dependencies, colorize))
	fmt.Fprintln(out)

	if len(status.Checks) > 0 {
		writeLines(renderSectionHeader("Checks", colorize))
		writeLines(checkLines(status.Checks, colorize))
		fmt.Fprintln(out)
	}

	writeLines(renderSectionHeader("Task History", colorize))
	if status.Tasks.Total == 0 {
		fmt.Fprintln(out, "No tasks recorded")
		return
	}
	rows := [][]string{
		{"Pending", strconv.Itoa(status.Tasks.Pending)},
		{"Running", strconv.Itoa(status.Tasks.Running)},
		{"Completed", strconv.Itoa(status.Tasks.Completed)},
		{"Failed", strconv.Itoa(status.Tasks.Failed)},
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
