package main

import (
	"encoding/json"
	"io"
	"time"

	"librarian/internal/analysiscache"
	"librarian/internal/media"
	"librarian/internal/scanner"
)

// scanReport is the document printed by scan --json.
type scanReport struct {
	Root    string               `json:"root"`
	Summary scanner.Summary      `json:"summary"`
	Counts  map[media.Status]int `json:"counts"`
	Files   []media.View         `json:"files"`
}

func newScanReport(result libraryScan, filter media.Status) scanReport {
	return scanReport{
		Root:    result.Summary.Root,
		Summary: result.Summary,
		Counts:  statusCounts(result.Records),
		Files:   recordViews(result.Records, filter),
	}
}

// cacheReport is the document printed by cache stats --json.
type cacheReport struct {
	Path      string               `json:"path"`
	Entries   int                  `json:"entries"`
	ByStatus  map[media.Status]int `json:"by_status"`
	Oldest    *time.Time           `json:"oldest,omitempty"`
	Newest    *time.Time           `json:"newest,omitempty"`
	FileBytes int64                `json:"file_bytes"`
}

func newCacheReport(path string, stats analysiscache.Stats) cacheReport {
	report := cacheReport{
		Path:      path,
		Entries:   stats.Entries,
		ByStatus:  stats.ByStatus,
		FileBytes: stats.FileBytes,
	}
	if !stats.Oldest.IsZero() {
		report.Oldest = &stats.Oldest
	}
	if !stats.Newest.IsZero() {
		report.Newest = &stats.Newest
	}
	return report
}

// writeReport encodes a report as indented JSON. Library paths routinely
// contain '&', so HTML escaping is off.
func writeReport(out io.Writer, report any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
