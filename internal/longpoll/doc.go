// Package longpoll drives remote inference jobs through a submit-then-poll
// protocol.
//
// Run submits a Request through a Backend, then sleeps a fixed interval and
// fetches the job status until it reaches a terminal state. Backends (see
// services/replicate and services/runpod) translate their wire formats into
// Snapshot values; Run owns the state machine and the error taxonomy.
//
// Polling is unbounded by default. WithMaxAttempts and the caller's context
// may bound it.
package longpoll
