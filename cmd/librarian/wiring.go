package main

import (
	"context"
	"fmt"
	"log/slog"

	"librarian/internal/analysiscache"
	"librarian/internal/analyzer"
	"librarian/internal/compliance"
	"librarian/internal/config"
	"librarian/internal/encoding"
	"librarian/internal/logging"
	"librarian/internal/media"
	"librarian/internal/overrides"
	"librarian/internal/replace"
	"librarian/internal/scanner"
	"librarian/internal/services"
)

// qualityStandards projects the [quality] section into compliance thresholds.
func qualityStandards(cfg *config.Config) compliance.Standards {
	q := cfg.Quality
	return compliance.Standards{
		Ranges:            bucketRanges(q.Bitrates),
		PreferredCodec:    q.PreferredCodec,
		BitDepth:          compliance.BitDepthPolicy(q.BitDepth),
		SubtitlePolicy:    compliance.PresencePolicy(q.SubtitleCheck),
		SubtitleLanguages: append([]string(nil), q.SubtitleLanguages...),
		CoverArtPolicy:    compliance.PresencePolicy(q.CoverArtCheck),
	}
}

func bucketRanges(ranges config.BucketRanges) map[compliance.Bucket]compliance.Range {
	out := make(map[compliance.Bucket]compliance.Range, len(compliance.Buckets))
	for name, r := range ranges.ByName() {
		out[compliance.Bucket(name)] = compliance.Range{MinKbps: r.MinKbps, MaxKbps: r.MaxKbps}
	}
	return out
}

func scannerOptions(cfg *config.Config) scanner.Options {
	return scanner.Options{
		Recursive:        cfg.Scan.Recursive,
		Extensions:       append([]string(nil), cfg.Scan.Extensions...),
		SkipDirs:         append([]string(nil), cfg.Scan.SkipDirs...),
		MinFileSizeBytes: cfg.Scan.MinFileSizeBytes,
	}
}

func analyzerOptions(cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		Threads: cfg.Scan.Threads,
		Timeout: cfg.ProbeTimeout(),
	}
}

func encodingOptions(cfg *config.Config) encoding.Options {
	enc := cfg.Encoding
	targets := make(map[compliance.Bucket]int, len(compliance.Buckets))
	for name, kbps := range enc.TargetKbps.ByName() {
		targets[compliance.Bucket(name)] = kbps
	}
	return encoding.Options{
		FFmpeg:           cfg.Tools.FFmpeg,
		CodecFamily:      enc.CodecFamily,
		Codec:            enc.Codec,
		UseGPU:           enc.UseGPU,
		Preset:           enc.Preset,
		TuneAnimation:    enc.TuneAnimation,
		Level:            enc.Level,
		Quality:          enc.Quality,
		Threads:          enc.Threads,
		BitDepth:         compliance.BitDepthPolicy(cfg.Quality.BitDepth),
		UseTargetBitrate: enc.UseTargetBitrate,
		UseBitrateLimits: enc.UseBitrateLimits,
		Targets:          targets,
		Limits:           bucketRanges(enc.Limits),
		SkipVideo:        enc.SkipVideo,
		SkipAudio:        enc.SkipAudio,
		SkipSubtitles:    enc.SkipSubtitles,
		SkipCoverArt:     enc.SkipCoverArt,
		IgnoreExtras:     enc.IgnoreExtras,
		OutputDirName:    enc.OutputDirName,
		OutputSuffix:     enc.OutputSuffix,
		StopTimeout:      cfg.StopTimeout(),
	}
}

func replaceOptions(cfg *config.Config) replace.Options {
	return replace.Options{
		ReplaceSmaller: cfg.Replace.ReplaceSmaller,
		RemoveLarger:   cfg.Replace.RemoveLarger,
	}
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*analysiscache.Store, error) {
	store, err := analysiscache.Open(ctx, cfg.Paths.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open analysis cache: %w", err)
	}
	return store, nil
}

// openLibraryCache opens the cache for scan and encode runs. A cache that
// cannot be opened is logged and treated as empty; the nil store misses every
// lookup and drops every write.
func openLibraryCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) *analysiscache.Store {
	store, err := openCache(ctx, cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "analysis cache unavailable; continuing without it",
			"cache_open_failed", "every file is probed and no results are cached",
			logging.String("cache_path", cfg.Paths.CachePath),
			logging.Error(err),
		)
		return nil
	}
	return store
}

// libraryScan is a scanned and probed library root.
type libraryScan struct {
	Records []*media.Record
	Summary scanner.Summary
}

// analyzeLibrary walks root, restores cached analyses and probes the rest.
// progress may be nil.
func analyzeLibrary(ctx context.Context, cfg *config.Config, cache *analysiscache.Store, root string, logger *slog.Logger, progress analyzer.ProgressFunc) (libraryScan, error) {
	catalog := overrides.NewCatalog(cfg.Paths.OverridesPath, logger)
	if err := catalog.Load(); err != nil {
		return libraryScan{}, err
	}
	standards := qualityStandards(cfg)

	scanCtx := services.WithStage(ctx, "scan")
	scan := scanner.New(scannerOptions(cfg), standards, cache, catalog, logging.WithContext(scanCtx, logger))
	records, summary, err := scan.Scan(scanCtx, root)
	if err != nil {
		return libraryScan{}, err
	}

	prober := analyzer.FFprobeProber{Binary: cfg.Tools.FFprobe}
	probeCtx := services.WithStage(ctx, "probe")
	runner := analyzer.NewRunner(prober, standards, cache, analyzerOptions(cfg), logging.WithContext(probeCtx, logger))
	probeErr := runner.ProbeAll(probeCtx, records, progress)
	if err := cache.Flush(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("analysis cache flush failed", logging.Error(err))
	}
	if probeErr != nil {
		return libraryScan{Records: records, Summary: summary}, probeErr
	}
	return libraryScan{Records: records, Summary: summary}, nil
}
