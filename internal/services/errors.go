package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind tags used on the operation surface. Component packages define their
// own markers with NewMarker so callers can classify failures without
// importing every component.
const (
	KindInvalidPath    = "invalid_path"
	KindNotAFile       = "not_a_file"
	KindWrongExtension = "wrong_extension"
	KindDecode         = "decode_error"
	KindEncode         = "encode_error"
	KindIO             = "io_error"
	KindSubmission     = "submission_error"
	KindPoll           = "poll_error"
	KindJobFailed      = "job_failed"
	KindUnknownStatus  = "unknown_status"
	KindInvalidParams  = "invalid_params"
	KindProcessLaunch  = "process_launch_error"
	KindProcessExit    = "process_exit_error"
	KindValidation     = "validation"
	KindConfiguration  = "configuration"
	KindNotFound       = "not_found"
	KindTimeout        = "timeout"
	KindExternalTool   = "external_tool"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)

// Marker is a sentinel error carrying a taxonomy kind.
type Marker struct {
	kind string
	text string
}

// NewMarker returns a sentinel error tagged with kind.
func NewMarker(kind, text string) *Marker {
	return &Marker{kind: kind, text: text}
}

func (m *Marker) Error() string { return m.text }

// Kind reports the taxonomy tag.
func (m *Marker) Kind() string { return m.kind }

type kinder interface {
	Kind() string
}

// Kind maps err to its taxonomy tag. The first tagged error found while
// unwrapping wins; untagged errors fall back to the shared markers.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	default:
		return KindInternal
	}
}

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above or a component Marker.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
