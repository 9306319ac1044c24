package analysiscache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"librarian/internal/media"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "analysis.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleEntry(path string, modTime time.Time, size int64) Entry {
	return Entry{
		Path:    path,
		ModTime: modTime,
		Size:    size,
		Status:  media.StatusCompliant,
		Attributes: media.Attributes{
			VideoCodec:        "hevc",
			Width:             1920,
			Height:            1080,
			BitDepth:          10,
			FrameRate:         media.FrameRate{Num: 24000, Den: 1001},
			DurationSeconds:   2640.5,
			BitrateKbps:       3500,
			AudioCodec:        "eac3",
			AudioChannels:     6,
			AudioLanguage:     "eng",
			SubtitleLanguages: []string{"eng", "fre"},
			HasCoverArt:       true,
		},
		Classification: media.Classification{
			Category: media.CategoryShow,
			ShowName: "Show",
			Season:   media.IntPtr(1),
			Episode:  media.IntPtr(5),
		},
	}
}

func TestRoundTripAfterFlush(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 123456789)
	want := sampleEntry("/lib/Show/Show.S01E05.mkv", modTime, 1_000_000)

	store.Put(want)
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, ok := store.Get(ctx, want.Path, modTime, want.Size)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !reflect.DeepEqual(got.Attributes, want.Attributes) {
		t.Fatalf("attributes differ:\n got %+v\nwant %+v", got.Attributes, want.Attributes)
	}
	if got.Classification.ShowName != "Show" || *got.Classification.Season != 1 || *got.Classification.Episode != 5 {
		t.Fatalf("unexpected classification %+v", got.Classification)
	}
	if got.Status != media.StatusCompliant {
		t.Fatalf("unexpected status %s", got.Status)
	}
}

func TestSizeChangeIsMissAndDiscardsEntry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 0)
	entry := sampleEntry("/lib/movie.mkv", modTime, 5000)
	store.Put(entry)
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if _, ok := store.Get(ctx, entry.Path, modTime, 5001); ok {
		t.Fatal("a one byte size change must be a miss")
	}
	if _, ok := store.Get(ctx, entry.Path, modTime, 5000); ok {
		t.Fatal("stale entry should have been discarded")
	}
}

func TestModTimeChangeIsMiss(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 0)
	entry := sampleEntry("/lib/movie.mkv", modTime, 5000)
	store.Put(entry)

	if _, ok := store.Get(ctx, entry.Path, modTime.Add(time.Nanosecond), 5000); ok {
		t.Fatal("expected miss for changed modification time")
	}
}

func TestPendingEntriesAreVisibleBeforeFlush(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 0)
	store.Put(sampleEntry("/lib/a.mkv", modTime, 10))
	if _, ok := store.Get(ctx, "/lib/a.mkv", modTime, 10); !ok {
		t.Fatal("expected buffered entry to be readable")
	}
}

func TestCorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 0)
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO analysis_entries (path, mtime_ns, size, status, payload, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"/lib/broken.mkv", modTime.UnixNano(), 10, "compliant", "{not json", time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}
	store.Put(sampleEntry("/lib/good.mkv", modTime, 10))

	entries, err := store.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/lib/good.mkv" {
		t.Fatalf("expected only the good entry, got %+v", entries)
	}
	if _, ok := store.Get(ctx, "/lib/broken.mkv", modTime, 10); ok {
		t.Fatal("corrupt entry must read as a miss")
	}
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM analysis_entries WHERE path = ?`, "/lib/broken.mkv").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("corrupt entry should be deleted after a read")
	}
}

func TestPruneRemovesMissingAndChangedFiles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	dir := t.TempDir()

	kept := filepath.Join(dir, "kept.mkv")
	changed := filepath.Join(dir, "changed.mkv")
	for _, path := range []string{kept, changed} {
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	keptInfo, _ := os.Stat(kept)
	changedInfo, _ := os.Stat(changed)

	store.Put(sampleEntry(kept, keptInfo.ModTime(), keptInfo.Size()))
	store.Put(sampleEntry(changed, changedInfo.ModTime(), changedInfo.Size()+1))
	store.Put(sampleEntry(filepath.Join(dir, "gone.mkv"), time.Now(), 4))

	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed entries, got %d", removed)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 1 || stats.ByStatus[media.StatusCompliant] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	modTime := time.Unix(1_700_000_000, 0)
	store.Put(sampleEntry("/lib/a.mkv", modTime, 10))
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	store.Put(sampleEntry("/lib/b.mkv", modTime, 10))

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one persisted row removed, got %d", removed)
	}
	if _, ok := store.Get(ctx, "/lib/b.mkv", modTime, 10); ok {
		t.Fatal("buffered entries must be cleared too")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")
	modTime := time.Unix(1_700_000_000, 0)

	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Put(sampleEntry("/lib/a.mkv", modTime, 10))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok := reopened.Get(ctx, "/lib/a.mkv", modTime, 10); !ok {
		t.Fatal("Close should flush buffered entries")
	}
}

func TestNilStoreIsEmptyCache(t *testing.T) {
	var store *Store
	ctx := context.Background()
	store.Put(Entry{Path: "/x"})
	if _, ok := store.Get(ctx, "/x", time.Time{}, 0); ok {
		t.Fatal("nil store must always miss")
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush on nil store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
}
