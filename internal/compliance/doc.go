// Package compliance decides whether a file meets the configured quality
// standards.
//
// Files are bucketed by resolution, width first, and checked in a fixed order:
// bit depth, bitrate, codec, subtitles, cover art. Bit depth, bitrate and the
// below_standard presence policies can end the evaluation early with
// StatusBelowStandard; every other finding is collected as an issue (which
// makes the file NeedsReencoding) or a warning (which never changes status).
package compliance
