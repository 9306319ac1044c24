// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties, including
//     pixel format, frame rate, disposition flags and language tags
//   - Format: container-level metadata (duration, size, bitrate)
//
// Inspect runs ffprobe and Parse decodes an already captured document. Helper
// methods pick the primary (non cover-art) video stream, the first audio
// stream, and subtitle languages.
package ffprobe
