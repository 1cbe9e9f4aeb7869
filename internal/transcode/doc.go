// Package transcode builds and runs ffmpeg invocations for the video tools:
// loop, reverse, extract-audio, and overlay-audio.
//
// Requests are validated before any process starts. The process itself runs
// through a Launcher so tests can substitute a stub for the real binary.
package transcode
