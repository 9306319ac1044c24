package analyzer

import (
	"context"

	"librarian/internal/media"
	"librarian/internal/media/ffprobe"
)

// Prober inspects one media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// FFprobeProber runs the ffprobe binary.
type FFprobeProber struct {
	Binary string
}

// Probe implements Prober.
func (p FFprobeProber) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.Binary, path)
}

// noVideoIssue is recorded when a file has no playable video stream.
const noVideoIssue = "No video stream found"

// ExtractAttributes converts probe output into record attributes. The second
// return value is false when the file has no video stream.
func ExtractAttributes(result ffprobe.Result, sizeBytes int64) (media.Attributes, bool) {
	video, ok := result.PrimaryVideo()
	if !ok {
		return media.Attributes{}, false
	}

	attrs := media.Attributes{
		VideoCodec:        video.CodecName,
		Width:             video.Width,
		Height:            video.Height,
		BitDepth:          video.BitDepth(),
		DurationSeconds:   result.DurationSeconds(),
		SubtitleLanguages: result.SubtitleLanguages(),
		HasCoverArt:       result.HasCoverArt(),
	}
	if num, den, ok := video.FrameRate(); ok {
		attrs.FrameRate = media.FrameRate{Num: num, Den: den}
	}
	attrs.BitrateKbps = media.ComputeBitrateKbps(sizeBytes, attrs.DurationSeconds)

	if audio, ok := result.FirstAudio(); ok {
		attrs.AudioCodec = audio.CodecName
		attrs.AudioChannels = audio.Channels
		attrs.AudioLanguage = audio.Language()
	}
	return attrs, true
}
