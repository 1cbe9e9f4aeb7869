package main

import (
	"fmt"
	"os"
	"strings"

	"toolbox/internal/config"
	"toolbox/internal/value"
)

// resolvePath expands ~ and makes arg absolute so the daemon, which runs
// from its own working directory, sees the same file the user named.
func resolvePath(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", nil
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", arg, err)
	}
	return path, nil
}

// parseJobInput accepts inline JSON or @file and returns the decoded value.
// An empty argument yields an empty object.
func parseJobInput(raw string) (value.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return value.Object(), nil
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		path, err := resolvePath(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return value.Value{}, err
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return value.Value{}, fmt.Errorf("read job input %q: %w", path, err)
		}
	}
	v, err := value.Parse(data)
	if err != nil {
		return value.Value{}, fmt.Errorf("parse job input: %w", err)
	}
	return v, nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
