// Package daemon coordinates the long-running toolbox process.
//
// It wires configuration, the task history store, and the shared api.Service
// into a single lifecycle with flock-based locking to prevent multiple
// instances. On start the daemon closes out tasks a previous run left in
// flight, logs failing preflight checks, and, when api.bind is configured,
// serves a read-only JSON view of status and task history guarded by an
// optional bearer token.
//
// Operation logic belongs in the api package; the daemon only owns startup,
// shutdown, and the process-wide resources.
package daemon
