package media

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryClaimIsExclusive(t *testing.T) {
	rec := NewRecord("/library/a.mkv", 10, time.Now())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec.TryClaim() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one claim, got %d", wins.Load())
	}
	if rec.Status() != StatusScanning || !rec.Analyzing() {
		t.Fatalf("claimed record should be scanning, got %s analyzing=%v", rec.Status(), rec.Analyzing())
	}
}

func TestClaimLifecycle(t *testing.T) {
	rec := NewRecord("/library/a.mkv", 10, time.Now())
	if !rec.TryClaim() {
		t.Fatal("expected fresh record to be claimable")
	}
	if rec.SetEvaluation(StatusCompliant, nil, nil) {
		t.Fatal("re-evaluation must be refused while a probe holds the claim")
	}
	rec.Finish(StatusNeedsReencoding, []string{"Codec is h264, not hevc"}, nil)
	if rec.Analyzing() {
		t.Fatal("Finish must release the claim")
	}
	if rec.TryClaim() {
		t.Fatal("terminal records must not be claimable")
	}
	if got := rec.Issues(); len(got) != 1 || got[0] != "Codec is h264, not hevc" {
		t.Fatalf("unexpected issues %v", got)
	}
	if !rec.SetEvaluation(StatusCompliant, nil, nil) || rec.Status() != StatusCompliant {
		t.Fatal("re-evaluation should apply once the claim is released")
	}
}

func TestAbandonReturnsToUnknown(t *testing.T) {
	rec := NewRecord("/library/a.mkv", 10, time.Now())
	rec.MarkScanning()
	if !rec.TryClaim() {
		t.Fatal("scanning record should be claimable")
	}
	rec.Abandon()
	if rec.Status() != StatusUnknown || rec.Analyzing() {
		t.Fatalf("unexpected state after abandon: %s", rec.Status())
	}
	if !rec.TryClaim() {
		t.Fatal("abandoned record should be claimable again")
	}
}

func TestIssuesAreCopied(t *testing.T) {
	rec := NewRecord("/library/a.mkv", 10, time.Now())
	issues := []string{"one"}
	rec.SetEvaluation(StatusNeedsReencoding, issues, nil)
	issues[0] = "mutated"
	got := rec.Issues()
	got[0] = "also mutated"
	if rec.Issues()[0] != "one" {
		t.Fatalf("record issues leaked: %v", rec.Issues())
	}
}

func TestComputeBitrateKbps(t *testing.T) {
	tests := []struct {
		size     int64
		duration float64
		want     int
	}{
		{size: 1_000_000, duration: 8, want: 1000},
		{size: 2_700_000_000, duration: 5400, want: 4000},
		{size: 0, duration: 10, want: 0},
		{size: 100, duration: 0, want: 0},
	}
	for _, tt := range tests {
		if got := ComputeBitrateKbps(tt.size, tt.duration); got != tt.want {
			t.Fatalf("ComputeBitrateKbps(%d, %v) = %d, want %d", tt.size, tt.duration, got, tt.want)
		}
	}
}

func TestClassificationLabel(t *testing.T) {
	c := Classification{Category: CategoryShow, ShowName: "Show", Season: IntPtr(1), Episode: IntPtr(5)}
	if got := c.Label(); got != "Show S01E05" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := (Classification{Category: CategoryExtra, ShowName: "Show"}).Label(); got != "Extra (Show)" {
		t.Fatalf("unexpected extra label %q", got)
	}
}

func TestTotalFrames(t *testing.T) {
	attrs := Attributes{DurationSeconds: 10, FrameRate: FrameRate{Num: 30, Den: 1}}
	if attrs.TotalFrames() != 300 {
		t.Fatalf("expected 300 frames, got %d", attrs.TotalFrames())
	}
	if (Attributes{DurationSeconds: 10}).TotalFrames() != 0 {
		t.Fatal("expected 0 frames without a frame rate")
	}
}
