package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"librarian/internal/media"
	"librarian/internal/testsupport"
)

func TestScanReportsComplianceAsJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubFFprobe(t, probeDoc("hevc"))
	testsupport.WriteLibrary(t, env.library, map[string]int64{
		// 1.0s at 3500 kbps sits inside the 1080p window; 900 kbps is below it.
		"Show/Season 1/Show.S01E01.mkv": 437_500,
		"Show/Season 1/Show.S01E02.mkv": 112_500,
		"notes.txt":                     10,
	})

	out, errOut, err := runCLI(t, []string{"scan", env.library, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v (stderr %s)", err, errOut)
	}
	requireContains(t, errOut, "Probed 2/2 files")

	var report struct {
		Counts map[media.Status]int `json:"counts"`
		Files  []media.View         `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode scan json: %v\n%s", err, out)
	}
	if len(report.Files) != 2 {
		t.Fatalf("expected two media files, got %d", len(report.Files))
	}
	if report.Counts[media.StatusCompliant] != 1 || report.Counts[media.StatusBelowStandard] != 1 {
		t.Fatalf("unexpected counts %v", report.Counts)
	}
	first := report.Files[0]
	if filepath.Base(first.Path) != "Show.S01E01.mkv" || first.Attributes.BitrateKbps != 3500 {
		t.Fatalf("unexpected first file %+v", first)
	}
	if first.Classification.Category != media.CategoryShow || first.Classification.Label() != "Show S01E01" {
		t.Fatalf("unexpected classification %+v", first.Classification)
	}
}

func TestScanUsesCacheOnSecondRun(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubFFprobe(t, probeDoc("hevc"))
	testsupport.WriteLibrary(t, env.library, map[string]int64{"Movie (2010)/Movie (2010).mkv": 437_500})

	if _, _, err := runCLI(t, []string{"scan", env.library}, env.configPath); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	// A failing prober proves the second scan never probes.
	env.stubFFprobe(t, "not json")
	out, _, err := runCLI(t, []string{"scan", env.library, "--status", "compliant"}, env.configPath)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	requireContains(t, out, "1 files (1 cached")
	requireContains(t, out, "Movie (2010).mkv")
	requireContains(t, out, "Compliant")
}

func TestScanRejectsUnknownStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"scan", env.library, "--status", "shiny"}, env.configPath); err == nil {
		t.Fatal("expected an unknown status to be rejected")
	}
}

func TestScanMissingRootFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"scan", filepath.Join(env.baseDir, "missing")}, env.configPath); err == nil {
		t.Fatal("expected a missing root to fail")
	}
}

func TestScanContinuesWhenCacheIsUnreadable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubFFprobe(t, probeDoc("hevc"))
	testsupport.WriteLibrary(t, env.library, map[string]int64{"Movie (2010)/Movie (2010).mkv": 437_500})
	if err := os.MkdirAll(filepath.Dir(env.cfg.Paths.CachePath), 0o755); err != nil {
		t.Fatalf("mkdir cache dir: %v", err)
	}
	if err := os.WriteFile(env.cfg.Paths.CachePath, []byte("this is not a sqlite database, just noise"), 0o644); err != nil {
		t.Fatalf("write broken cache: %v", err)
	}

	out, errOut, err := runCLI(t, []string{"scan", env.library, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan must not fail on a broken cache: %v (stderr %s)", err, errOut)
	}
	var report struct {
		Counts map[media.Status]int `json:"counts"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode scan json: %v\n%s", err, out)
	}
	if report.Counts[media.StatusCompliant] != 1 {
		t.Fatalf("expected the file to be probed without a cache, got %v", report.Counts)
	}

	if _, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath); err == nil {
		t.Fatal("cache maintenance commands should still report a broken cache")
	}
}
