// Package imageconv converts and cleans up image files in bulk.
//
// A Converter selects files by extension (WebP by default), decodes them,
// and writes the re-encoded image (PNG by default, AVIF optionally) next to
// the source with the extension replaced. ConvertAll isolates failures per
// file and returns a Report; ConvertOne and DeleteAllMatching fail fast.
package imageconv
