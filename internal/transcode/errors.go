package transcode

import (
	"fmt"
	"strings"

	"toolbox/internal/services"
)

var (
	ErrInvalidParams = services.NewMarker(services.KindInvalidParams, "invalid params")
	ErrProcessLaunch = services.NewMarker(services.KindProcessLaunch, "process launch error")
	ErrProcessExit   = services.NewMarker(services.KindProcessExit, "process exit error")
)

const maxTailLines = 8

// ProcessExitError reports a non-zero encoder exit. Output holds the
// captured diagnostic text.
type ProcessExitError struct {
	Binary string
	Code   int
	Output string
}

func (e *ProcessExitError) Error() string {
	tail := Tail(e.Output, maxTailLines)
	if tail == "" {
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.Code, tail)
}

func (e *ProcessExitError) Unwrap() error { return ErrProcessExit }

// Kind reports the taxonomy tag.
func (e *ProcessExitError) Kind() string { return services.KindProcessExit }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Tail returns the last n non-empty lines of output joined by " | ".
func Tail(output string, n int) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r", "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}
