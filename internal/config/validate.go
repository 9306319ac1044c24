package config

import (
	"errors"
	"fmt"
	"strings"
)

var bucketOrder = []string{BucketLowRes, Bucket720p, Bucket1080p, Bucket1440p, Bucket4K}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateScan() error {
	if c.Scan.Threads <= 0 {
		return errors.New("scan.threads must be positive")
	}
	if c.Scan.MinFileSizeBytes < 0 {
		return errors.New("scan.min_file_size_bytes must not be negative")
	}
	if c.Scan.ProbeTimeoutSeconds <= 0 {
		return errors.New("scan.probe_timeout_seconds must be positive")
	}
	if len(c.Scan.Extensions) == 0 {
		return errors.New("scan.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateQuality() error {
	switch c.Quality.BitDepth {
	case BitDepthSource, BitDepthForce8, BitDepthForce10:
	default:
		return fmt.Errorf("quality.bit_depth must be one of source, force_8bit, force_10bit (got %q)", c.Quality.BitDepth)
	}
	if err := validatePresence("quality.subtitle_check", c.Quality.SubtitleCheck); err != nil {
		return err
	}
	if err := validatePresence("quality.cover_art_check", c.Quality.CoverArtCheck); err != nil {
		return err
	}
	if c.Quality.SubtitleCheck != PresenceIgnore && len(c.Quality.SubtitleLanguages) == 0 {
		return errors.New("quality.subtitle_languages must not be empty when subtitle_check is enabled")
	}
	return validateRanges("quality.bitrates", c.Quality.Bitrates)
}

func (c *Config) validateEncoding() error {
	enc := c.Encoding
	switch enc.CodecFamily {
	case CodecFamilyHEVC, CodecFamilyAV1:
	default:
		return fmt.Errorf("encoding.codec_family must be x265 or av1 (got %q)", enc.CodecFamily)
	}
	if enc.Quality < 0 || enc.Quality > 63 {
		return errors.New("encoding.quality must be between 0 and 63")
	}
	if enc.Threads <= 0 {
		return errors.New("encoding.threads must be positive")
	}
	if enc.StopTimeoutSeconds < 0 {
		return errors.New("encoding.stop_timeout_seconds must not be negative")
	}
	if strings.ContainsAny(enc.OutputDirName, `/\`) {
		return errors.New("encoding.output_dir_name must be a single folder name")
	}
	if enc.UseBitrateLimits {
		if err := validateRanges("encoding.limits", enc.Limits); err != nil {
			return err
		}
	}
	if enc.UseTargetBitrate {
		targets := enc.TargetKbps.ByName()
		limits := enc.Limits.ByName()
		for _, name := range bucketOrder {
			target := targets[name]
			if target <= 0 {
				return fmt.Errorf("encoding.target_kbps.%s must be positive", name)
			}
			if !enc.UseBitrateLimits {
				continue
			}
			limit := limits[name]
			if target < limit.MinKbps || target > limit.MaxKbps {
				return fmt.Errorf("encoding.target_kbps.%s (%d) conflicts with encoding.limits.%s [%d, %d]; adjust the target or the limits",
					name, target, name, limit.MinKbps, limit.MaxKbps)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}

func validatePresence(key, value string) error {
	switch value {
	case PresenceIgnore, PresenceWarn, PresenceNeedsReencoding, PresenceBelowStandard:
		return nil
	default:
		return fmt.Errorf("%s must be one of ignore, warn, needs_reencoding, below_standard (got %q)", key, value)
	}
}

func validateRanges(prefix string, ranges BucketRanges) error {
	byName := ranges.ByName()
	for _, name := range bucketOrder {
		r := byName[name]
		if r.MinKbps < 0 || r.MaxKbps < 0 {
			return fmt.Errorf("%s.%s must not be negative", prefix, name)
		}
		if r.MaxKbps > 0 && r.MinKbps > r.MaxKbps {
			return fmt.Errorf("%s.%s.min_kbps (%d) exceeds max_kbps (%d)", prefix, name, r.MinKbps, r.MaxKbps)
		}
	}
	return nil
}
