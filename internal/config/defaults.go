package config

// Resolution bucket names shared by the quality and encoding sections.
const (
	BucketLowRes = "low_res"
	Bucket720p   = "720p"
	Bucket1080p  = "1080p"
	Bucket1440p  = "1440p"
	Bucket4K     = "4k"
)

// Bit-depth policies.
const (
	BitDepthSource  = "source"
	BitDepthForce8  = "force_8bit"
	BitDepthForce10 = "force_10bit"
)

// Presence policies for subtitle and cover-art checks.
const (
	PresenceIgnore          = "ignore"
	PresenceWarn            = "warn"
	PresenceNeedsReencoding = "needs_reencoding"
	PresenceBelowStandard   = "below_standard"
)

// Codec families.
const (
	CodecFamilyHEVC = "x265"
	CodecFamilyAV1  = "av1"
)

const (
	defaultConfigPath    = "~/.config/librarian/config.toml"
	defaultStateDir      = "~/.local/share/librarian"
	defaultCacheFileName = "analysis.db"
	defaultLockFileName  = "encode.lock"
	defaultLogDirName    = "logs"

	defaultScanThreads         = 8
	defaultMinFileSizeBytes    = 1 << 20
	defaultProbeTimeoutSeconds = 10

	defaultPreferredCodec = "hevc"
	defaultPreset         = "veryfast"
	defaultLevel          = "4.1"
	defaultQuality        = 22
	defaultEncodeThreads  = 4
	defaultOutputDirName  = "encoded"
	defaultOutputSuffix   = ".encoded"
	defaultStopTimeout    = 2

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

var (
	defaultExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".wmv", ".flv", ".webm", ".ts", ".m2ts"}
	defaultSkipDirs   = []string{".git", ".svn", ".hg", "__pycache__", "@eaDir", "#recycle", "$RECYCLE.BIN", "System Volume Information", ".Trash"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Scan: Scan{
			Recursive:           true,
			Threads:             defaultScanThreads,
			MinFileSizeBytes:    defaultMinFileSizeBytes,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			Extensions:          append([]string(nil), defaultExtensions...),
			SkipDirs:            append([]string(nil), defaultSkipDirs...),
		},
		Quality: Quality{
			PreferredCodec:    defaultPreferredCodec,
			BitDepth:          BitDepthSource,
			SubtitleCheck:     PresenceIgnore,
			SubtitleLanguages: []string{"eng"},
			CoverArtCheck:     PresenceIgnore,
			Bitrates: BucketRanges{
				LowRes:  BitrateRange{MinKbps: 500, MaxKbps: 1000},
				HD720:   BitrateRange{MinKbps: 1000, MaxKbps: 2000},
				HD1080:  BitrateRange{MinKbps: 2000, MaxKbps: 4000},
				QHD1440: BitrateRange{MinKbps: 4000, MaxKbps: 6000},
				UHD4K:   BitrateRange{MinKbps: 6000, MaxKbps: 10000},
			},
		},
		Encoding: Encoding{
			CodecFamily: CodecFamilyHEVC,
			Preset:      defaultPreset,
			Level:       defaultLevel,
			Quality:     defaultQuality,
			Threads:     defaultEncodeThreads,
			TargetKbps: BucketTargets{
				LowRes:  800,
				HD720:   1500,
				HD1080:  3000,
				QHD1440: 5000,
				UHD4K:   8000,
			},
			Limits: BucketRanges{
				LowRes:  BitrateRange{MinKbps: 500, MaxKbps: 1000},
				HD720:   BitrateRange{MinKbps: 1000, MaxKbps: 2000},
				HD1080:  BitrateRange{MinKbps: 1500, MaxKbps: 4000},
				QHD1440: BitrateRange{MinKbps: 3000, MaxKbps: 6000},
				UHD4K:   BitrateRange{MinKbps: 6000, MaxKbps: 10000},
			},
			SkipCoverArt:       true,
			IgnoreExtras:       true,
			OutputDirName:      defaultOutputDirName,
			OutputSuffix:       defaultOutputSuffix,
			StopTimeoutSeconds: defaultStopTimeout,
		},
		Replace: Replace{
			ReplaceSmaller: true,
			RemoveLarger:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
