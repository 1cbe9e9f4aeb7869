// Package logging builds the slog loggers used by the toolbox CLI and daemon.
//
// Two handlers are available: a console handler that hoists the component and
// a short task id into the line prefix, and a JSON handler used for the daemon
// log file. Both mask attributes whose keys name credentials. Context helpers
// stamp task ids, operation names and correlation ids onto loggers, and
// ProgressSampler keeps batch progress logging to a handful of lines.
package logging
