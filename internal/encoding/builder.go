package encoding

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"librarian/internal/compliance"
	"librarian/internal/logging"
	"librarian/internal/media"
)

var (
	gpuSuffixes     = []string{"_nvenc", "_qsv", "_vaapi", "_amf", "_videotoolbox"}
	nvencPresetName = regexp.MustCompile(`^p[1-7]$`)
)

const (
	codecX265   = "libx265"
	codecSVTAV1 = "libsvtav1"

	defaultNVENCPreset  = "p6"
	defaultSVTAV1Preset = "8"
)

// IsGPUCodec reports whether codec names a hardware encoder.
func IsGPUCodec(codec string) bool {
	codec = strings.ToLower(codec)
	for _, suffix := range gpuSuffixes {
		if strings.HasSuffix(codec, suffix) {
			return true
		}
	}
	return false
}

// SoftwareFallback returns the software encoder matching a codec's family.
func SoftwareFallback(codec, family string) string {
	codec = strings.ToLower(codec)
	switch {
	case strings.HasPrefix(codec, "av1"):
		return codecSVTAV1
	case strings.HasPrefix(codec, "hevc"), strings.HasPrefix(codec, "h265"):
		return codecX265
	case family == FamilyAV1:
		return codecSVTAV1
	default:
		return codecX265
	}
}

// Builder produces ffmpeg argument lists. The codec is resolved once per
// builder so a missing GPU encoder is reported a single time.
type Builder struct {
	opts   Options
	caps   Capabilities
	logger *slog.Logger

	resolveOnce sync.Once
	codec       string
	gpu         bool
}

// NewBuilder constructs a builder. caps may be nil, in which case GPU codecs
// cannot be verified and fall back to software.
func NewBuilder(opts Options, caps Capabilities, logger *slog.Logger) *Builder {
	return &Builder{
		opts:   opts,
		caps:   caps,
		logger: logging.NewComponentLogger(logger, "encoder"),
	}
}

// ResolveCodec returns the video encoder to use and whether it is a GPU
// encoder. An explicit codec wins over the family and GPU settings.
func (b *Builder) ResolveCodec(ctx context.Context) (string, bool) {
	b.resolveOnce.Do(func() {
		b.codec, b.gpu = b.resolveCodec(ctx)
	})
	return b.codec, b.gpu
}

func (b *Builder) resolveCodec(ctx context.Context) (string, bool) {
	codec := strings.TrimSpace(b.opts.Codec)
	if codec == "" {
		switch {
		case b.opts.CodecFamily == FamilyAV1 && b.opts.UseGPU:
			codec = "av1_nvenc"
		case b.opts.CodecFamily == FamilyAV1:
			codec = codecSVTAV1
		case b.opts.UseGPU:
			codec = "hevc_nvenc"
		default:
			codec = codecX265
		}
	}
	if !IsGPUCodec(codec) {
		return codec, false
	}

	fallback := SoftwareFallback(codec, b.opts.CodecFamily)
	if b.caps == nil {
		logging.WarnWithContext(b.logger, "gpu encoder cannot be verified; using software encoder",
			"gpu_encoder_unverified", "encodes run on the CPU",
			logging.String("requested", codec),
			logging.String("fallback", fallback),
		)
		return fallback, false
	}
	available, err := b.caps.HasEncoder(ctx, codec)
	switch {
	case err != nil:
		logging.WarnWithContext(b.logger, "gpu encoder check failed; using software encoder",
			"gpu_encoder_unverified", "encodes run on the CPU",
			logging.String("requested", codec),
			logging.String("fallback", fallback),
			logging.Error(err),
		)
		return fallback, false
	case !available:
		logging.WarnWithContext(b.logger, "requested gpu encoder not available; using software encoder",
			"gpu_encoder_missing", "encodes run on the CPU",
			logging.String("requested", codec),
			logging.String("fallback", fallback),
		)
		return fallback, false
	}
	return codec, true
}

// BuildCommand returns the ffmpeg arguments (without the binary) that encode
// input to output for a source with the given attributes.
func (b *Builder) BuildCommand(ctx context.Context, attrs media.Attributes, input, output string) []string {
	args := []string{"-hide_banner", "-nostdin"}

	var codec string
	var gpu bool
	if !b.opts.SkipVideo {
		codec, gpu = b.ResolveCodec(ctx)
		if gpu {
			args = append(args, "-hwaccel", "auto")
		}
	}
	args = append(args, "-i", input)

	if b.opts.SkipVideo {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, b.videoArgs(attrs, codec, gpu)...)
	}

	if b.opts.SkipCoverArt {
		args = append(args, "-map", "0:v:0")
	} else {
		args = append(args, "-map", "0:v")
	}
	// Audio and subtitles are always stream-copied.
	args = append(args, "-map", "0:a?", "-c:a", "copy")
	args = append(args, "-map", "0:s?", "-c:s", "copy")

	return append(args, "-y", output)
}

func (b *Builder) videoArgs(attrs media.Attributes, codec string, gpu bool) []string {
	args := []string{"-c:v", codec}
	tenBit := b.wantsTenBit(attrs)
	hevc := isHEVCCodec(codec)

	if hevc {
		profile := "main"
		if tenBit {
			profile = "main10"
		}
		args = append(args, "-profile:v", profile)
	}
	if preset := b.preset(codec); preset != "" {
		args = append(args, "-preset", preset)
	}
	if b.opts.TuneAnimation && codec == codecX265 {
		args = append(args, "-tune", "animation")
	}

	if !b.opts.UseTargetBitrate {
		q := strconv.Itoa(b.opts.Quality)
		switch {
		case gpu:
			args = append(args, "-rc", "vbr", "-qp", q, "-qmax", strconv.Itoa(b.opts.Quality+3))
		case codec == codecSVTAV1:
			args = append(args, "-crf", q)
		default:
			args = append(args, "-rc", "vbr", "-crf", q)
		}
	}

	bucket := compliance.BucketFor(attrs.Width, attrs.Height)
	if b.opts.UseTargetBitrate {
		if target := b.opts.Targets[bucket]; target > 0 {
			args = append(args, "-b:v", kbps(target))
		}
	}
	if b.opts.UseBitrateLimits {
		if limit, ok := b.opts.Limits[bucket]; ok {
			if limit.MinKbps > 0 {
				args = append(args, "-minrate", kbps(limit.MinKbps))
			}
			if limit.MaxKbps > 0 {
				args = append(args, "-maxrate", kbps(limit.MaxKbps))
			}
		}
	}

	if level := strings.TrimSpace(b.opts.Level); level != "" && hevc {
		args = append(args, "-level", level)
	}
	args = append(args, "-pix_fmt", pixelFormat(tenBit, gpu))
	if !gpu && b.opts.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(b.opts.Threads))
	}
	return args
}

func (b *Builder) wantsTenBit(attrs media.Attributes) bool {
	switch b.opts.BitDepth {
	case compliance.BitDepthForce10:
		return true
	case compliance.BitDepthForce8:
		return false
	default:
		return attrs.BitDepth >= 10
	}
}

// preset maps the configured preset onto what the chosen encoder accepts.
func (b *Builder) preset(codec string) string {
	preset := strings.TrimSpace(b.opts.Preset)
	lower := strings.ToLower(codec)
	switch {
	case strings.HasSuffix(lower, "_nvenc"):
		if nvencPresetName.MatchString(preset) {
			return preset
		}
		return defaultNVENCPreset
	case strings.HasSuffix(lower, "_qsv"):
		return preset
	case IsGPUCodec(lower):
		return ""
	case lower == codecSVTAV1:
		if _, err := strconv.Atoi(preset); err == nil {
			return preset
		}
		return defaultSVTAV1Preset
	default:
		return preset
	}
}

func isHEVCCodec(codec string) bool {
	codec = strings.ToLower(codec)
	return codec == codecX265 || strings.HasPrefix(codec, "hevc")
}

func pixelFormat(tenBit, gpu bool) string {
	switch {
	case tenBit && gpu:
		return "p010le"
	case tenBit:
		return "yuv420p10le"
	default:
		return "yuv420p"
	}
}

func kbps(value int) string {
	return strconv.Itoa(value) + "k"
}
