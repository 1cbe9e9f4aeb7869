package longpoll

// Status is the normalized job state reported by a backend. Backends pass
// unrecognized remote values through unchanged.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Pending reports whether the job is still queued or running.
func (s Status) Pending() bool {
	return s == StatusStarting || s == StatusProcessing
}

// Terminal reports whether no further transition occurs from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}
