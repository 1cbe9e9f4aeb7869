// Package services defines shared utilities consumed by the toolbox
// operations and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers, the Kind classifier, and the Wrap helper that
//     give every failure a stable taxonomy tag on the operation surface.
//
// Remote job backends live in subpackages (replicate, runpod).
package services
