package encoding

import (
	"time"

	"librarian/internal/compliance"
)

// Codec families.
const (
	FamilyHEVC = "x265"
	FamilyAV1  = "av1"
)

// Options configures job preparation, command building and supervision.
type Options struct {
	FFmpeg string

	CodecFamily   string
	Codec         string
	UseGPU        bool
	Preset        string
	TuneAnimation bool
	Level         string
	Quality       int
	Threads       int
	BitDepth      compliance.BitDepthPolicy

	UseTargetBitrate bool
	UseBitrateLimits bool
	Targets          map[compliance.Bucket]int
	Limits           map[compliance.Bucket]compliance.Range

	SkipVideo     bool
	SkipAudio     bool
	SkipSubtitles bool
	SkipCoverArt  bool
	IgnoreExtras  bool

	OutputDirName string
	OutputSuffix  string
	StopTimeout   time.Duration
}

func (o Options) ffmpegBinary() string {
	if o.FFmpeg == "" {
		return "ffmpeg"
	}
	return o.FFmpeg
}

func (o Options) stopTimeout() time.Duration {
	if o.StopTimeout <= 0 {
		return 2 * time.Second
	}
	return o.StopTimeout
}
