// Package scanner walks a library root and produces media records.
//
// Each candidate file is stat'ed once. A cache hit restores probed attributes
// and re-runs compliance against the current standards; a miss yields a
// record in Scanning state for the probe runner. Manual overrides always win
// over heuristic classification.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"librarian/internal/analysiscache"
	"librarian/internal/classify"
	"librarian/internal/compliance"
	"librarian/internal/logging"
	"librarian/internal/media"
	"librarian/internal/overrides"
	"librarian/internal/services"
)

// Options controls which files a scan considers.
type Options struct {
	Recursive        bool
	Extensions       []string
	SkipDirs         []string
	MinFileSizeBytes int64
}

// Cache is the read side of the analysis cache.
type Cache interface {
	Get(ctx context.Context, path string, modTime time.Time, size int64) (analysiscache.Entry, bool)
}

// OverrideSource supplies manual classification overrides.
type OverrideSource interface {
	Lookup(path string) (overrides.Override, bool, error)
}

// Summary describes one scan.
type Summary struct {
	Root         string
	Files        int
	CacheHits    int
	Overridden   int
	SkippedSmall int
	Duration     time.Duration
}

// Scanner produces records for a library root.
type Scanner struct {
	opts      Options
	standards compliance.Standards
	cache     Cache
	overrides OverrideSource
	logger    *slog.Logger

	extensions map[string]struct{}
	skipDirs   map[string]struct{}
}

// New constructs a scanner. cache and source may be nil.
func New(opts Options, standards compliance.Standards, cache Cache, source OverrideSource, logger *slog.Logger) *Scanner {
	s := &Scanner{
		opts:       opts,
		standards:  standards,
		cache:      cache,
		overrides:  source,
		logger:     logging.NewComponentLogger(logger, "scanner"),
		extensions: make(map[string]struct{}, len(opts.Extensions)),
		skipDirs:   make(map[string]struct{}, len(opts.SkipDirs)),
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions[ext] = struct{}{}
	}
	for _, dir := range opts.SkipDirs {
		s.skipDirs[strings.ToLower(strings.TrimSpace(dir))] = struct{}{}
	}
	return s
}

type candidate struct {
	path    string
	size    int64
	modTime time.Time
}

// Scan walks root and returns one record per media file, ordered by path.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*media.Record, Summary, error) {
	start := time.Now()
	summary := Summary{Root: root}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, summary, services.Wrap(services.ErrValidation, "scan", "resolve root", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, summary, services.Wrap(services.ErrNotFound, "scan", "stat root", absRoot, err)
	}
	if !info.IsDir() {
		return nil, summary, services.Wrap(services.ErrValidation, "scan", "stat root", absRoot+" is not a directory", nil)
	}
	summary.Root = absRoot

	candidates, skipped, err := s.walk(ctx, absRoot)
	if err != nil {
		return nil, summary, err
	}
	summary.SkippedSmall = skipped

	siblings := make(map[string]int, len(candidates))
	for _, c := range candidates {
		siblings[filepath.Dir(c.path)]++
	}

	records := make([]*media.Record, 0, len(candidates))
	overridesHealthy := s.overrides != nil
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, summary, err
		}
		rec := media.NewRecord(c.path, c.size, c.modTime)
		input := classify.Input{Path: c.path, Root: absRoot, SiblingMedia: siblings[filepath.Dir(c.path)]}

		entry, hit := s.cacheGet(ctx, c)
		if hit {
			rec.Attributes = entry.Attributes
			rec.Classification = classify.Recheck(entry.Classification, input)
			summary.CacheHits++
		} else {
			rec.MarkScanning()
			rec.Classification = classify.Classify(input)
		}

		if overridesHealthy {
			override, ok, lookupErr := s.overrides.Lookup(c.path)
			if lookupErr != nil {
				logging.WarnWithContext(s.logger, "manual overrides unavailable; using heuristics",
					"overrides_failed", "manual classifications ignored for this scan",
					logging.Error(lookupErr),
				)
				overridesHealthy = false
			} else if ok {
				rec.Classification = override.Classification()
				rec.Overridden = true
				summary.Overridden++
			}
		}

		if hit {
			compliance.Apply(rec, s.standards)
		}
		records = append(records, rec)
	}

	summary.Files = len(records)
	summary.Duration = time.Since(start)
	s.logger.Info("scan complete",
		logging.String("root", absRoot),
		logging.Int("files", summary.Files),
		logging.Int("cache_hits", summary.CacheHits),
		logging.Int("overridden", summary.Overridden),
		logging.Int("skipped_small", summary.SkippedSmall),
		logging.Duration("elapsed", summary.Duration),
	)
	return records, summary, nil
}

func (s *Scanner) cacheGet(ctx context.Context, c candidate) (analysiscache.Entry, bool) {
	if s.cache == nil {
		return analysiscache.Entry{}, false
	}
	return s.cache.Get(ctx, c.path, c.modTime, c.size)
}

func (s *Scanner) walk(ctx context.Context, root string) ([]candidate, int, error) {
	var (
		candidates []candidate
		skipped    int
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logging.WarnWithContext(s.logger, "skipping unreadable path",
				"walk_error", "files below this path are not scanned",
				logging.String(logging.FieldPath, path),
				logging.Error(walkErr),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !s.opts.Recursive || s.skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !s.mediaExtension(name) {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping file that cannot be stat'ed",
				"stat_failed", "file is not scanned",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
			)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() < s.opts.MinFileSizeBytes {
			skipped++
			return nil
		}
		candidates = append(candidates, candidate{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, skipped, err
		}
		return nil, skipped, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.SortFunc(candidates, func(a, b candidate) int { return strings.Compare(a.path, b.path) })
	return candidates, skipped, nil
}

func (s *Scanner) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := s.skipDirs[strings.ToLower(name)]
	return ok
}

func (s *Scanner) mediaExtension(name string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Describe renders a one-line summary for the CLI.
func (sum Summary) Describe() string {
	return fmt.Sprintf("%d files (%d cached, %d overridden, %d too small) in %s",
		sum.Files, sum.CacheHits, sum.Overridden, sum.SkippedSmall, sum.Duration.Round(time.Millisecond))
}
