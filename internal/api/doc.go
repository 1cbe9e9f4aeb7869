// Package api is the operation surface shared by the toolbox CLI, the daemon's
// JSON-RPC server, and its HTTP status endpoints.
//
// # Key Types
//
// Service: runs image conversion, WebP cleanup, settings persistence, remote
// inference jobs, and encoder operations against one resolved Config. Every
// state-changing call is recorded in the task history when a store is attached.
//
// TaskService: read-only task history queries returning TaskItem DTOs.
//
// Request/response DTOs: one pair per operation. They are shared with the ipc
// package so the RPC wire format and the in-process API cannot drift.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Timestamps
// use RFC3339 with milliseconds. Errors keep their package markers, so callers
// classify them with services.Kind; the ipc layer forwards that tag to clients.
package api
