package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"librarian/internal/compliance"
	"librarian/internal/media"
	"librarian/internal/media/ffprobe"
	"librarian/internal/scanner"
	"librarian/internal/services"
)

type stubProber struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(ctx context.Context, path string) (ffprobe.Result, error)
}

func (s *stubProber) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[path]++
	s.mu.Unlock()
	return s.respond(ctx, path)
}

func (s *stubProber) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

type recordingCache struct {
	mu   sync.Mutex
	puts []string
}

func (c *recordingCache) PutRecord(rec *media.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, rec.Path)
}

func hevc1080(duration string) ffprobe.Result {
	doc := fmt.Sprintf(`{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "width": 1920, "height": 1080, "pix_fmt": "yuv420p10le", "r_frame_rate": "24000/1001"},
    {"index": 1, "codec_name": "eac3", "codec_type": "audio", "channels": 6, "tags": {"language": "eng"}},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "eng"}}
  ],
  "format": {"duration": %q}
}`, duration)
	result, err := ffprobe.Parse([]byte(doc))
	if err != nil {
		panic(err)
	}
	return result
}

func testStandards() compliance.Standards {
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

func scanningRecord(path string, size int64) *media.Record {
	rec := media.NewRecord(path, size, time.Unix(1_700_000_000, 0))
	rec.MarkScanning()
	return rec
}

func TestWorkerCount(t *testing.T) {
	if WorkerCount(4, 0) != 0 {
		t.Fatal("no files means no workers")
	}
	if got := WorkerCount(4, 2); got > 2 || got < 1 {
		t.Fatalf("worker count must be capped by file count, got %d", got)
	}
	if got := WorkerCount(1, 100); got != 1 {
		t.Fatalf("worker count must be capped by threads, got %d", got)
	}
	if got := WorkerCount(10_000, 10_000); got > 10_000 || got < 1 {
		t.Fatalf("unexpected worker count %d", got)
	}
}

func TestExtractAttributes(t *testing.T) {
	attrs, ok := ExtractAttributes(hevc1080("2.0"), 1_000_000)
	if !ok {
		t.Fatal("expected video stream")
	}
	if attrs.VideoCodec != "hevc" || attrs.Width != 1920 || attrs.Height != 1080 || attrs.BitDepth != 10 {
		t.Fatalf("unexpected video attributes %+v", attrs)
	}
	if attrs.FrameRate != (media.FrameRate{Num: 24000, Den: 1001}) {
		t.Fatalf("unexpected frame rate %+v", attrs.FrameRate)
	}
	if attrs.BitrateKbps != 4000 {
		t.Fatalf("expected 4000 kbps, got %d", attrs.BitrateKbps)
	}
	if attrs.AudioCodec != "eac3" || attrs.AudioChannels != 6 || attrs.AudioLanguage != "eng" {
		t.Fatalf("unexpected audio attributes %+v", attrs)
	}
	if len(attrs.SubtitleLanguages) != 1 || attrs.SubtitleLanguages[0] != "eng" {
		t.Fatalf("unexpected subtitles %v", attrs.SubtitleLanguages)
	}

	audioOnly, err := ffprobe.Parse([]byte(`{"streams":[{"codec_type":"audio","codec_name":"flac"}],"format":{"duration":"10"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := ExtractAttributes(audioOnly, 10); ok {
		t.Fatal("expected no video stream")
	}
}

func TestProbeAllRecordsOutcomes(t *testing.T) {
	records := []*media.Record{
		scanningRecord("/lib/good.mkv", 1_000_000),
		scanningRecord("/lib/audio.mkv", 1_000_000),
		scanningRecord("/lib/garbage.mkv", 1_000_000),
		scanningRecord("/lib/broken.mkv", 1_000_000),
	}
	done := media.NewRecord("/lib/done.mkv", 10, time.Now())
	done.SetEvaluation(media.StatusCompliant, nil, nil)
	records = append(records, done)

	prober := &stubProber{respond: func(_ context.Context, path string) (ffprobe.Result, error) {
		switch filepath.Base(path) {
		case "good.mkv":
			return hevc1080("2.0"), nil
		case "audio.mkv":
			return ffprobe.Parse([]byte(`{"streams":[{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"2"}}`))
		case "garbage.mkv":
			return ffprobe.Parse([]byte(`not json`))
		default:
			return ffprobe.Result{}, errors.New("exit status 1: moov atom not found")
		}
	}}
	cache := &recordingCache{}
	runner := NewRunner(prober, testStandards(), cache, Options{Threads: 4, Timeout: time.Second}, nil)

	var lastCompleted int
	var mu sync.Mutex
	err := runner.ProbeAll(context.Background(), records, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if completed > lastCompleted {
			lastCompleted = completed
		}
		if total != 4 {
			t.Errorf("unexpected total %d", total)
		}
	})
	if err != nil {
		t.Fatalf("ProbeAll failed: %v", err)
	}
	if runner.Completed() != 4 || lastCompleted != 4 {
		t.Fatalf("expected 4 completed, got %d / %d", runner.Completed(), lastCompleted)
	}
	if prober.callCount("/lib/done.mkv") != 0 {
		t.Fatal("terminal records must not be probed")
	}

	if records[0].Status() != media.StatusCompliant {
		t.Fatalf("good file: %s %v", records[0].Status(), records[0].Issues())
	}
	checkError := func(rec *media.Record, prefix string) {
		t.Helper()
		issues := rec.Issues()
		if rec.Status() != media.StatusError || len(issues) != 1 || !strings.HasPrefix(issues[0], prefix) {
			t.Fatalf("%s: unexpected outcome %s %v", rec.Path, rec.Status(), issues)
		}
	}
	checkError(records[1], "No video stream found")
	checkError(records[2], "Invalid ffprobe output")
	checkError(records[3], "Failed to probe media file")

	if len(cache.puts) != 1 || cache.puts[0] != "/lib/good.mkv" {
		t.Fatalf("only successful probes should be cached, got %v", cache.puts)
	}
}

func TestProbeAllTimeout(t *testing.T) {
	prober := &stubProber{respond: func(ctx context.Context, _ string) (ffprobe.Result, error) {
		<-ctx.Done()
		return ffprobe.Result{}, ctx.Err()
	}}
	rec := scanningRecord("/lib/slow.mkv", 10)
	runner := NewRunner(prober, testStandards(), nil, Options{Threads: 1, Timeout: 20 * time.Millisecond}, nil)
	if err := runner.ProbeAll(context.Background(), []*media.Record{rec}, nil); err != nil {
		t.Fatalf("a per-file timeout must not fail the run: %v", err)
	}
	if rec.Status() != media.StatusError || rec.Issues()[0] != "Timeout while probing media" {
		t.Fatalf("unexpected outcome %s %v", rec.Status(), rec.Issues())
	}
}

func TestProbeAllDuplicateSubmissionProbesOnce(t *testing.T) {
	rec := scanningRecord("/lib/dup.mkv", 1_000_000)
	release := make(chan struct{})
	prober := &stubProber{respond: func(_ context.Context, _ string) (ffprobe.Result, error) {
		<-release
		return hevc1080("2.0"), nil
	}}
	runner := NewRunner(prober, testStandards(), nil, Options{Threads: 8, Timeout: time.Second}, nil)

	records := []*media.Record{rec, rec, rec, rec}
	errCh := make(chan error, 1)
	go func() { errCh <- runner.ProbeAll(context.Background(), records, nil) }()
	time.Sleep(20 * time.Millisecond)
	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("ProbeAll failed: %v", err)
	}
	if got := prober.callCount("/lib/dup.mkv"); got != 1 {
		t.Fatalf("expected exactly one probe, got %d", got)
	}
	if rec.Status() != media.StatusCompliant {
		t.Fatalf("unexpected status %s", rec.Status())
	}
}

func TestProbeAllAbortsWhenProberMissing(t *testing.T) {
	prober := &stubProber{respond: func(_ context.Context, _ string) (ffprobe.Result, error) {
		return ffprobe.Result{}, fmt.Errorf("ffprobe inspect: %w", exec.ErrNotFound)
	}}
	records := []*media.Record{scanningRecord("/lib/a.mkv", 10), scanningRecord("/lib/b.mkv", 10)}
	runner := NewRunner(prober, testStandards(), nil, Options{Threads: 1, Timeout: time.Second}, nil)

	err := runner.ProbeAll(context.Background(), records, nil)
	if !errors.Is(err, services.ErrExternalTool) || !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	for _, rec := range records {
		if rec.Status() == media.StatusError {
			t.Fatalf("records must not be marked as errors when the tool is missing: %s", rec.Path)
		}
	}
}

func TestProbeAllCancellationLeavesRecordsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := &stubProber{respond: func(ctx context.Context, _ string) (ffprobe.Result, error) {
		cancel()
		<-ctx.Done()
		return ffprobe.Result{}, ctx.Err()
	}}
	rec := scanningRecord("/lib/a.mkv", 10)
	runner := NewRunner(prober, testStandards(), nil, Options{Threads: 1, Timeout: time.Second}, nil)
	if err := runner.ProbeAll(ctx, []*media.Record{rec}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rec.Status() != media.StatusUnknown || rec.Analyzing() {
		t.Fatalf("cancelled probe should release the record, got %s", rec.Status())
	}
}

func TestScanAndProbeEpisodes(t *testing.T) {
	root := t.TempDir()
	season := filepath.Join(root, "Show", "Season 1")
	if err := os.MkdirAll(season, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// One second of media: 437500 bytes is 3500 kbps, 112500 bytes is 900 kbps.
	files := map[string]int{
		"Show.S01E01.mkv": 437_500,
		"Show.S01E02.mkv": 112_500,
	}
	for name, size := range files {
		if err := os.WriteFile(filepath.Join(season, name), make([]byte, size), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	std := testStandards()
	scan := scanner.New(scanner.Options{Recursive: true, Extensions: []string{".mkv"}, MinFileSizeBytes: 1024}, std, nil, nil, nil)
	records, _, err := scan.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	prober := &stubProber{respond: func(_ context.Context, _ string) (ffprobe.Result, error) {
		return hevc1080("1.0"), nil
	}}
	if err := NewRunner(prober, std, nil, Options{Threads: 2, Timeout: time.Second}, nil).ProbeAll(context.Background(), records, nil); err != nil {
		t.Fatalf("ProbeAll failed: %v", err)
	}

	ep1, ep2 := records[0], records[1]
	if ep1.Classification.Category != media.CategoryShow || *ep1.Classification.Season != 1 || *ep1.Classification.Episode != 1 {
		t.Fatalf("unexpected classification %+v", ep1.Classification)
	}
	if ep1.Status() != media.StatusCompliant {
		t.Fatalf("episode 1: expected compliant, got %s %v", ep1.Status(), ep1.Issues())
	}
	if ep2.Status() != media.StatusBelowStandard {
		t.Fatalf("episode 2: expected below standard, got %s", ep2.Status())
	}
	if issues := ep2.Issues(); len(issues) != 1 || !strings.HasPrefix(issues[0], "bitrate below minimum for 1080p") {
		t.Fatalf("episode 2: unexpected issues %v", issues)
	}
}
