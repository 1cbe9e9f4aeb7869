// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and remote job APIs that toolbox depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check.
//   - The CLI "toolbox status" command renders the same results as a table.
//
// Remote API checks are skipped when no credential is configured.
package preflight
