package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"librarian/internal/analysiscache"
	"librarian/internal/compliance"
	"librarian/internal/media"
	"librarian/internal/overrides"
	"librarian/internal/services"
)

type fakeCache struct {
	entries map[string]analysiscache.Entry
	gets    int
}

func (f *fakeCache) Get(_ context.Context, path string, modTime time.Time, size int64) (analysiscache.Entry, bool) {
	f.gets++
	entry, ok := f.entries[path]
	if !ok || !entry.Matches(modTime, size) {
		return analysiscache.Entry{}, false
	}
	return entry, true
}

type fakeOverrides map[string]overrides.Override

func (f fakeOverrides) Lookup(path string) (overrides.Override, bool, error) {
	o, ok := f[path]
	return o, ok, nil
}

func standards() compliance.Standards {
	return compliance.Standards{
		Ranges: map[compliance.Bucket]compliance.Range{
			compliance.Bucket1080p: {MinKbps: 1500, MaxKbps: 4000},
		},
		PreferredCodec: "hevc",
		BitDepth:       compliance.BitDepthSource,
		SubtitlePolicy: compliance.PresenceIgnore,
		CoverArtPolicy: compliance.PresenceIgnore,
	}
}

func defaultOptions() Options {
	return Options{
		Recursive:        true,
		Extensions:       []string{".mkv", "mp4"},
		SkipDirs:         []string{"encoded", "@eaDir"},
		MinFileSizeBytes: 8,
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func paths(records []*media.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Path)
	}
	return out
}

func TestScanFiltersFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Show", "Season 1", "Show.S01E01.mkv"), 64)
	writeFile(t, filepath.Join(root, "Show", "Season 1", "Show.S01E02.MP4"), 64)
	writeFile(t, filepath.Join(root, "Show", "Season 1", "notes.txt"), 64)
	writeFile(t, filepath.Join(root, "Show", "Season 1", "sample.mkv"), 2)
	writeFile(t, filepath.Join(root, "Show", ".hidden", "x.mkv"), 64)
	writeFile(t, filepath.Join(root, "Show", "._Show.S01E01.mkv"), 64)
	writeFile(t, filepath.Join(root, "Show", "Season 1", "encoded", "Show.S01E01.encoded.mkv"), 64)
	writeFile(t, filepath.Join(root, "@eaDir", "thumb.mkv"), 64)

	s := New(defaultOptions(), standards(), nil, nil, nil)
	records, summary, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		filepath.Join(root, "Show", "Season 1", "Show.S01E01.mkv"),
		filepath.Join(root, "Show", "Season 1", "Show.S01E02.MP4"),
	}
	got := paths(records)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected records %v", got)
	}
	if summary.SkippedSmall != 1 {
		t.Fatalf("expected one small file skipped, got %d", summary.SkippedSmall)
	}
	for _, rec := range records {
		if rec.Status() != media.StatusScanning {
			t.Fatalf("cache misses should be scanning, got %s", rec.Status())
		}
		if rec.Classification.Category != media.CategoryShow || rec.Classification.ShowName != "Show" {
			t.Fatalf("unexpected classification %+v", rec.Classification)
		}
	}
}

func TestScanNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.mkv"), 64)
	writeFile(t, filepath.Join(root, "nested", "deep.mkv"), 64)

	opts := defaultOptions()
	opts.Recursive = false
	records, _, err := New(opts, standards(), nil, nil, nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 || filepath.Base(records[0].Path) != "top.mkv" {
		t.Fatalf("unexpected records %v", paths(records))
	}
}

func TestScanCacheHitReevaluatesAgainstCurrentStandards(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Show", "Season 1", "Show.S01E02.mkv")
	writeFile(t, path, 64)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	cache := &fakeCache{entries: map[string]analysiscache.Entry{
		path: {
			Path:           path,
			ModTime:        info.ModTime(),
			Size:           info.Size(),
			Status:         media.StatusCompliant,
			Attributes:     media.Attributes{VideoCodec: "hevc", Width: 1920, Height: 1080, BitrateKbps: 900},
			Classification: media.Classification{Category: media.CategoryShow, ShowName: "Show", Season: media.IntPtr(1), Episode: media.IntPtr(2)},
		},
	}}

	records, summary, err := New(defaultOptions(), standards(), cache, nil, nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.CacheHits != 1 || len(records) != 1 {
		t.Fatalf("expected one cache hit, got %+v", summary)
	}
	rec := records[0]
	if rec.Status() != media.StatusBelowStandard {
		t.Fatalf("cached status must be recomputed, got %s", rec.Status())
	}
	if rec.Attributes.BitrateKbps != 900 {
		t.Fatalf("attributes not restored: %+v", rec.Attributes)
	}
}

func TestScanCacheHitRechecksClassification(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Heat (1995)", "Heat (1995) 1080p.mkv")
	writeFile(t, path, 64)
	info, _ := os.Stat(path)

	cache := &fakeCache{entries: map[string]analysiscache.Entry{
		path: {
			Path:           path,
			ModTime:        info.ModTime(),
			Size:           info.Size(),
			Attributes:     media.Attributes{VideoCodec: "hevc", Width: 1920, Height: 1080, BitrateKbps: 3000},
			Classification: media.Classification{Category: media.CategoryShow, ShowName: "Heat"},
		},
	}}
	records, _, err := New(defaultOptions(), standards(), cache, nil, nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := records[0].Classification.Category; got != media.CategoryMovie {
		t.Fatalf("expected single-file folder to be corrected to movie, got %s", got)
	}
	if records[0].Status() != media.StatusCompliant {
		t.Fatalf("unexpected status %s", records[0].Status())
	}
}

func TestScanAppliesOverridesOnHitAndMiss(t *testing.T) {
	root := t.TempDir()
	missPath := filepath.Join(root, "Docs", "Planet.S01E01.mkv")
	hitPath := filepath.Join(root, "Docs", "Planet.S01E02.mkv")
	writeFile(t, missPath, 64)
	writeFile(t, hitPath, 64)
	info, _ := os.Stat(hitPath)

	cache := &fakeCache{entries: map[string]analysiscache.Entry{
		hitPath: {
			Path:           hitPath,
			ModTime:        info.ModTime(),
			Size:           info.Size(),
			Attributes:     media.Attributes{VideoCodec: "hevc", Width: 1920, Height: 1080, BitrateKbps: 3000},
			Classification: media.Classification{Category: media.CategoryShow, ShowName: "Planet"},
		},
	}}
	source := fakeOverrides{
		missPath: {Path: missPath, Category: "movie"},
		hitPath:  {Path: hitPath, Category: "extra", ShowName: "Planet Earth"},
	}

	records, summary, err := New(defaultOptions(), standards(), cache, source, nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Overridden != 2 {
		t.Fatalf("expected both files overridden, got %d", summary.Overridden)
	}
	byPath := map[string]*media.Record{}
	for _, rec := range records {
		byPath[rec.Path] = rec
	}
	if c := byPath[missPath].Classification; c.Category != media.CategoryMovie || !byPath[missPath].Overridden {
		t.Fatalf("override not applied on miss: %+v", c)
	}
	if c := byPath[hitPath].Classification; c.Category != media.CategoryExtra || c.ShowName != "Planet Earth" {
		t.Fatalf("override not applied on hit: %+v", c)
	}
}

func TestScanRejectsMissingRoot(t *testing.T) {
	_, _, err := New(defaultOptions(), standards(), nil, nil, nil).Scan(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file.mkv")
	writeFile(t, file, 64)
	_, _, err = New(defaultOptions(), standards(), nil, nil, nil).Scan(context.Background(), file)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mkv"), 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := New(defaultOptions(), standards(), nil, nil, nil).Scan(ctx, root); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
