package encoding

import (
	"path/filepath"
	"testing"
	"time"

	"librarian/internal/media"
)

func analyzedRecord(path string, status media.Status, category media.Category, height int) *media.Record {
	rec := media.NewRecord(path, 1<<30, time.Unix(1_700_000_000, 0))
	rec.Attributes = media.Attributes{Width: height * 16 / 9, Height: height, DurationSeconds: 60, FrameRate: media.FrameRate{Num: 24, Den: 1}}
	rec.Classification = media.Classification{Category: category}
	rec.SetEvaluation(status, nil, nil)
	return rec
}

func TestPrepareJobsSelection(t *testing.T) {
	records := []*media.Record{
		analyzedRecord("/lib/a.mkv", media.StatusNeedsReencoding, media.CategoryMovie, 1080),
		analyzedRecord("/lib/b.mkv", media.StatusCompliant, media.CategoryMovie, 1080),
		analyzedRecord("/lib/c.mkv", media.StatusBelowStandard, media.CategoryMovie, 1080),
		analyzedRecord("/lib/d.mkv", media.StatusNeedsReencoding, media.CategoryExtra, 1080),
		analyzedRecord("/lib/e.mkv", media.StatusNeedsReencoding, media.CategoryShow, 720),
		nil,
	}
	opts := Options{IgnoreExtras: true, OutputDirName: "encoded", OutputSuffix: ".encoded"}

	jobs := PrepareJobs(records, opts, ModeSelected)
	if len(jobs) != 2 || jobs[0].Input != "/lib/a.mkv" || jobs[1].Input != "/lib/e.mkv" {
		t.Fatalf("unexpected selection %v", inputs(jobs))
	}
	if jobs[0].ID == "" || jobs[0].ID == jobs[1].ID {
		t.Fatal("every job needs a unique id")
	}
	if jobs[0].Status() != JobPending {
		t.Fatalf("new jobs start pending, got %s", jobs[0].Status())
	}
	if jobs[0].Output != filepath.Join("/lib", "encoded", "a.encoded.mkv") {
		t.Fatalf("unexpected output path %q", jobs[0].Output)
	}

	hq := PrepareJobs(records, opts, ModeHighQuality)
	if len(hq) != 1 || hq[0].Input != "/lib/a.mkv" {
		t.Fatalf("high quality mode should keep only 1080p+, got %v", inputs(hq))
	}

	opts.IgnoreExtras = false
	if withExtras := PrepareJobs(records, opts, ModeSelected); len(withExtras) != 3 {
		t.Fatalf("extras should be included when not ignored, got %v", inputs(withExtras))
	}
}

func inputs(jobs []*Job) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Input)
	}
	return out
}

func TestOutputPath(t *testing.T) {
	got := OutputPath(filepath.Join("/media", "Show", "Season 1", "Show.S01E01.mkv"), "encoded", ".encoded")
	want := filepath.Join("/media", "Show", "Season 1", "encoded", "Show.S01E01.encoded.mkv")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"":             ModeSelected,
		"selected":     ModeSelected,
		"high-quality": ModeHighQuality,
		"HQ":           ModeHighQuality,
	}
	for input, want := range cases {
		got, err := ParseMode(input)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseMode("everything"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestJobSnapshotElapsed(t *testing.T) {
	job := NewJob(analyzedRecord("/lib/a.mkv", media.StatusNeedsReencoding, media.CategoryMovie, 1080), "/lib/encoded/a.mkv")
	if job.Snapshot().Elapsed() != 0 {
		t.Fatal("unstarted job has no elapsed time")
	}
	if job.Snapshot().ETA != UnknownETA {
		t.Fatal("unstarted job has unknown ETA")
	}
	job.setStatus(JobStarting)
	job.finish(JobCompleted, "done", 10)
	snap := job.Snapshot()
	if snap.Status != JobCompleted || snap.Percent != 100 || snap.OutputSize != 10 || snap.Elapsed() < 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.Status.Terminal() {
		t.Fatal("completed is terminal")
	}
}

func TestJobReadsRecordAtUse(t *testing.T) {
	rec := analyzedRecord("/lib/a.mkv", media.StatusNeedsReencoding, media.CategoryMovie, 1080)
	job := NewJob(rec, "/lib/encoded/a.mkv")
	if job.Record != rec {
		t.Fatal("job should refer to its record")
	}
	rec.Attributes.Height = 720
	rec.Classification = media.Classification{Category: media.CategoryShow}
	if got := job.Attributes().Height; got != 720 {
		t.Fatalf("expected attributes read from the record, got height %d", got)
	}
	snap := job.Snapshot()
	if snap.Attributes.Height != 720 || snap.Category != media.CategoryShow {
		t.Fatalf("snapshot should reflect the record, got %+v", snap)
	}
	if empty := (&Job{}).Attributes(); empty.Height != 0 || empty.VideoCodec != "" {
		t.Fatal("job without a record has zero attributes")
	}
}
