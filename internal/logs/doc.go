// Package logs tails the daemon log file for `toolbox daemon logs`.
//
// Tail reads the last N lines (negative offset) or everything after a byte
// offset, optionally waiting for new lines in follow mode. A Match filter
// keeps only lines containing a substring, which is how the CLI narrows the
// output to a single request or task id.
package logs
