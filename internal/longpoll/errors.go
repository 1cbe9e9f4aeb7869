package longpoll

import (
	"fmt"

	"toolbox/internal/services"
)

var (
	ErrSubmission    = services.NewMarker(services.KindSubmission, "submission error")
	ErrPoll          = services.NewMarker(services.KindPoll, "poll error")
	ErrJobFailed     = services.NewMarker(services.KindJobFailed, "job failed")
	ErrUnknownStatus = services.NewMarker(services.KindUnknownStatus, "unknown status")
)

// UnknownReason is reported when a failed job carries no error text.
const UnknownReason = "unknown error"

// JobFailedError reports a job that ended in the failed or canceled state.
type JobFailedError struct {
	ID     string
	Status Status
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job failed: %s", e.Reason)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// Kind reports the taxonomy tag.
func (e *JobFailedError) Kind() string { return services.KindJobFailed }

// UnknownStatusError reports a status value outside the known set.
type UnknownStatusError struct {
	ID    string
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status: %s", e.Value)
}

func (e *UnknownStatusError) Unwrap() error { return ErrUnknownStatus }

// Kind reports the taxonomy tag.
func (e *UnknownStatusError) Kind() string { return services.KindUnknownStatus }
