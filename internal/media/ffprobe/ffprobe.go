package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidOutput marks ffprobe runs that exited cleanly but produced output
// that could not be decoded.
var ErrInvalidOutput = errors.New("invalid ffprobe output")

// pixFmtDepth matches the per-component depth ffmpeg appends to planar and
// semi-planar formats: yuv420p10le, yuv444p12be, p010le, gray10le. Packed
// names such as nv12 carry a layout number, not a depth.
var pixFmtDepth = regexp.MustCompile(`(?:p0?|gray)(9|1[0246])(?:le|be)?$`)

// imageCodecs are codecs that only ever carry still pictures (cover art).
var imageCodecs = map[string]struct{}{
	"mjpeg": {},
	"png":   {},
	"bmp":   {},
	"gif":   {},
	"webp":  {},
}

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Profile      string            `json:"profile"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	PixFmt       string            `json:"pix_fmt"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Channels     int               `json:"channels"`
	Duration     string            `json:"duration"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. The context bounds the run; callers apply their own timeout.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-print_format", "json", "-show_format", "-show_streams", "--", path)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("ffprobe inspect: %w", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, detail)
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(result.Streams) == 0 && result.Format.Duration == "" {
		return Result{}, fmt.Errorf("%w: no streams or format section", ErrInvalidOutput)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value := parseFloat(r.Format.Duration)
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

// PrimaryVideo returns the first video stream that is not an attached picture.
func (r Result) PrimaryVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if stream.IsVideo() && !stream.IsCoverArt() {
			return stream, true
		}
	}
	return Stream{}, false
}

// FirstAudio returns the first audio stream in container order.
func (r Result) FirstAudio() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// SubtitleLanguages lists the language tag of every subtitle stream, using
// "unknown" for untagged tracks.
func (r Result) SubtitleLanguages() []string {
	var langs []string
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "subtitle") {
			continue
		}
		lang := stream.Language()
		if lang == "" {
			lang = "unknown"
		}
		langs = append(langs, lang)
	}
	return langs
}

// HasCoverArt reports whether any video stream is an embedded picture.
func (r Result) HasCoverArt() bool {
	for _, stream := range r.Streams {
		if stream.IsVideo() && stream.IsCoverArt() {
			return true
		}
	}
	return false
}

// IsVideo reports whether the stream is a video stream.
func (s Stream) IsVideo() bool {
	return strings.EqualFold(s.CodecType, "video")
}

// IsCoverArt reports whether the stream carries an attached picture rather than motion video.
func (s Stream) IsCoverArt() bool {
	if s.Disposition["attached_pic"] == 1 {
		return true
	}
	_, image := imageCodecs[strings.ToLower(s.CodecName)]
	return image
}

// Language returns the lower-cased language tag, or "" when untagged.
func (s Stream) Language() string {
	for key, value := range s.Tags {
		if strings.EqualFold(key, "language") {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

// BitDepth derives the sample bit depth from the pixel format name.
func (s Stream) BitDepth() int {
	match := pixFmtDepth.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s.PixFmt)))
	if match == nil {
		return 8
	}
	depth, err := strconv.Atoi(match[1])
	if err != nil {
		return 8
	}
	return depth
}

// FrameRate returns the stream frame rate as a rational. The real base rate
// is preferred over the average.
func (s Stream) FrameRate() (num, den int64, ok bool) {
	for _, candidate := range []string{s.RFrameRate, s.AvgFrameRate} {
		if n, d, valid := parseRational(candidate); valid {
			return n, d, true
		}
	}
	return 0, 0, false
}

func parseRational(value string) (int64, int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, false
	}
	numText, denText, found := strings.Cut(value, "/")
	if !found {
		denText = "1"
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numText), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denText), 10, 64)
	if err != nil || den <= 0 || num <= 0 {
		return 0, 0, false
	}
	return num, den, true
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
