package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeScan()
	c.normalizeQuality()
	c.normalizeEncoding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CachePath) == "" {
		c.Paths.CachePath = filepath.Join(c.Paths.StateDir, defaultCacheFileName)
	}
	if c.Paths.CachePath, err = expandPath(c.Paths.CachePath); err != nil {
		return fmt.Errorf("paths.cache_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = filepath.Join(c.Paths.StateDir, defaultLockFileName)
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	if c.Paths.OverridesPath, err = expandPath(strings.TrimSpace(c.Paths.OverridesPath)); err != nil {
		return fmt.Errorf("paths.overrides_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if value, ok := os.LookupEnv("LIBRARIAN_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = strings.TrimSpace(value)
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = "ffmpeg"
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if value, ok := os.LookupEnv("LIBRARIAN_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = strings.TrimSpace(value)
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = "ffprobe"
	}
}

func (c *Config) normalizeScan() {
	extensions := make([]string, 0, len(c.Scan.Extensions))
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		extensions = append(extensions, ext)
	}
	c.Scan.Extensions = extensions

	skip := make([]string, 0, len(c.Scan.SkipDirs)+1)
	for _, dir := range c.Scan.SkipDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			skip = append(skip, dir)
		}
	}
	c.Scan.SkipDirs = skip
}

func (c *Config) normalizeQuality() {
	c.Quality.PreferredCodec = strings.ToLower(strings.TrimSpace(c.Quality.PreferredCodec))
	if c.Quality.PreferredCodec == "" {
		c.Quality.PreferredCodec = defaultPreferredCodec
	}
	c.Quality.BitDepth = canonicalPolicy(c.Quality.BitDepth, BitDepthSource)
	switch c.Quality.BitDepth {
	case "match_source":
		c.Quality.BitDepth = BitDepthSource
	case "force_8_bit":
		c.Quality.BitDepth = BitDepthForce8
	case "force_10_bit":
		c.Quality.BitDepth = BitDepthForce10
	}
	c.Quality.SubtitleCheck = canonicalPresence(c.Quality.SubtitleCheck)
	c.Quality.CoverArtCheck = canonicalPresence(c.Quality.CoverArtCheck)

	langs := make([]string, 0, len(c.Quality.SubtitleLanguages))
	for _, lang := range c.Quality.SubtitleLanguages {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			langs = append(langs, lang)
		}
	}
	c.Quality.SubtitleLanguages = langs
}

func (c *Config) normalizeEncoding() {
	c.Encoding.CodecFamily = strings.ToLower(strings.TrimSpace(c.Encoding.CodecFamily))
	switch c.Encoding.CodecFamily {
	case "", "hevc", "h265", "libx265":
		c.Encoding.CodecFamily = CodecFamilyHEVC
	case "svtav1", "libsvtav1":
		c.Encoding.CodecFamily = CodecFamilyAV1
	}
	c.Encoding.Codec = strings.TrimSpace(c.Encoding.Codec)
	c.Encoding.Preset = strings.TrimSpace(c.Encoding.Preset)
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaultPreset
	}
	c.Encoding.Level = strings.TrimSpace(c.Encoding.Level)
	c.Encoding.OutputDirName = strings.TrimSpace(c.Encoding.OutputDirName)
	if c.Encoding.OutputDirName == "" {
		c.Encoding.OutputDirName = defaultOutputDirName
	}
	if c.Encoding.OutputSuffix == "" {
		c.Encoding.OutputSuffix = defaultOutputSuffix
	}
	if c.Encoding.StopTimeoutSeconds == 0 {
		c.Encoding.StopTimeoutSeconds = defaultStopTimeout
	}

	// The encoder's own output folder must never be rescanned.
	for _, dir := range c.Scan.SkipDirs {
		if strings.EqualFold(dir, c.Encoding.OutputDirName) {
			return
		}
	}
	c.Scan.SkipDirs = append(c.Scan.SkipDirs, c.Encoding.OutputDirName)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if value, ok := os.LookupEnv("LIBRARIAN_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func canonicalPolicy(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "_")
	if value == "" {
		return fallback
	}
	return value
}

func canonicalPresence(value string) string {
	value = canonicalPolicy(value, PresenceIgnore)
	switch value {
	case "warning":
		return PresenceWarn
	case "needs_reencode", "reencode":
		return PresenceNeedsReencoding
	}
	return value
}
