package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state, cache and log locations.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	CachePath     string `toml:"cache_path"`
	OverridesPath string `toml:"overrides_path"`
	LockPath      string `toml:"lock_path"`
}

// Tools names the external binaries invoked by the prober and encoder.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Scan contains directory walk and probe pool settings.
type Scan struct {
	Recursive           bool     `toml:"recursive"`
	Threads             int      `toml:"threads"`
	MinFileSizeBytes    int64    `toml:"min_file_size_bytes"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
	Extensions          []string `toml:"extensions"`
	SkipDirs            []string `toml:"skip_dirs"`
}

// BitrateRange is an inclusive kbps window.
type BitrateRange struct {
	MinKbps int `toml:"min_kbps"`
	MaxKbps int `toml:"max_kbps"`
}

// BucketRanges holds one BitrateRange per resolution bucket.
type BucketRanges struct {
	LowRes  BitrateRange `toml:"low_res"`
	HD720   BitrateRange `toml:"720p"`
	HD1080  BitrateRange `toml:"1080p"`
	QHD1440 BitrateRange `toml:"1440p"`
	UHD4K   BitrateRange `toml:"4k"`
}

// ByName returns the ranges keyed by bucket name (low_res, 720p, 1080p, 1440p, 4k).
func (b BucketRanges) ByName() map[string]BitrateRange {
	return map[string]BitrateRange{
		BucketLowRes: b.LowRes,
		Bucket720p:   b.HD720,
		Bucket1080p:  b.HD1080,
		Bucket1440p:  b.QHD1440,
		Bucket4K:     b.UHD4K,
	}
}

// BucketTargets holds one target bitrate in kbps per resolution bucket.
type BucketTargets struct {
	LowRes  int `toml:"low_res"`
	HD720   int `toml:"720p"`
	HD1080  int `toml:"1080p"`
	QHD1440 int `toml:"1440p"`
	UHD4K   int `toml:"4k"`
}

// ByName returns the targets keyed by bucket name.
func (b BucketTargets) ByName() map[string]int {
	return map[string]int{
		BucketLowRes: b.LowRes,
		Bucket720p:   b.HD720,
		Bucket1080p:  b.HD1080,
		Bucket1440p:  b.QHD1440,
		Bucket4K:     b.UHD4K,
	}
}

// Quality contains the compliance thresholds and presence policies.
type Quality struct {
	PreferredCodec    string       `toml:"preferred_codec"`
	BitDepth          string       `toml:"bit_depth"`
	SubtitleCheck     string       `toml:"subtitle_check"`
	SubtitleLanguages []string     `toml:"subtitle_languages"`
	CoverArtCheck     string       `toml:"cover_art_check"`
	Bitrates          BucketRanges `toml:"bitrates"`
}

// Encoding contains encoder invocation settings.
type Encoding struct {
	CodecFamily        string        `toml:"codec_family"`
	Codec              string        `toml:"codec"`
	UseGPU             bool          `toml:"use_gpu"`
	Preset             string        `toml:"preset"`
	TuneAnimation      bool          `toml:"tune_animation"`
	Level              string        `toml:"level"`
	Quality            int           `toml:"quality"`
	Threads            int           `toml:"threads"`
	UseTargetBitrate   bool          `toml:"use_target_bitrate"`
	UseBitrateLimits   bool          `toml:"use_bitrate_limits"`
	TargetKbps         BucketTargets `toml:"target_kbps"`
	Limits             BucketRanges  `toml:"limits"`
	SkipVideo          bool          `toml:"skip_video"`
	SkipAudio          bool          `toml:"skip_audio"`
	SkipSubtitles      bool          `toml:"skip_subtitles"`
	SkipCoverArt       bool          `toml:"skip_cover_art"`
	IgnoreExtras       bool          `toml:"ignore_extras"`
	OutputDirName      string        `toml:"output_dir_name"`
	OutputSuffix       string        `toml:"output_suffix"`
	StopTimeoutSeconds int           `toml:"stop_timeout_seconds"`
}

// Replace controls what happens to originals after a successful encode.
type Replace struct {
	ReplaceSmaller bool `toml:"replace_smaller"`
	RemoveLarger   bool `toml:"remove_larger"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for librarian.
//
// Configuration sections by subsystem:
//   - Paths: state directory, analysis cache, overrides file, logs
//   - Tools: ffmpeg / ffprobe binaries
//   - Scan: walk filters and probe pool size
//   - Quality: compliance thresholds per resolution bucket
//   - Encoding: encoder arguments and job selection
//   - Replace: post-encode handling of originals
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tools    Tools    `toml:"tools"`
	Scan     Scan     `toml:"scan"`
	Quality  Quality  `toml:"quality"`
	Encoding Encoding `toml:"encoding"`
	Replace  Replace  `toml:"replace"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error: defaults are used.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		if env, ok := os.LookupEnv("LIBRARIAN_CONFIG"); ok && strings.TrimSpace(env) != "" {
			path = env
		}
	}
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.CachePath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProbeTimeout returns the per-file prober timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Scan.ProbeTimeoutSeconds) * time.Second
}

// StopTimeout returns how long a cancelled encoder gets to exit before it is force-killed.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Encoding.StopTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
