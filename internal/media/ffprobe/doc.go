// Package ffprobe inspects media files with the ffprobe CLI so the
// transcoder can check inputs for video and audio streams before launching
// the encoder.
package ffprobe
