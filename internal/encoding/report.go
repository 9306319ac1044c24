package encoding

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report renders a comparison table of original and encoded sizes. Sizes
// and change are shown for completed jobs only; the footer totals them.
func Report(jobs []*Job) string {
	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.SetTitle("Encoding comparison")
	tw.AppendHeader(table.Row{"File", "Status", "Original", "Encoded", "Change", "Message"})

	var totalOriginal, totalEncoded int64
	completed := 0
	for _, job := range jobs {
		snap := job.Snapshot()
		original := humanize.Bytes(uint64(max(snap.SourceSize, 0)))
		encoded, change := "", ""
		if snap.Status == JobCompleted {
			completed++
			totalOriginal += snap.SourceSize
			totalEncoded += snap.OutputSize
			encoded = humanize.Bytes(uint64(snap.OutputSize))
			change = percentChange(snap.SourceSize, snap.OutputSize)
		}
		tw.AppendRow(table.Row{filepath.Base(snap.Input), string(snap.Status), original, encoded, change, snap.Message})
	}

	saved := totalOriginal - totalEncoded
	savedLabel := humanize.Bytes(uint64(max(saved, 0)))
	if saved < 0 {
		savedLabel = "-" + humanize.Bytes(uint64(-saved))
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d encoded", completed),
		"",
		humanize.Bytes(uint64(totalOriginal)),
		humanize.Bytes(uint64(totalEncoded)),
		percentChange(totalOriginal, totalEncoded),
		"saved " + savedLabel,
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

// WriteReport writes Report(jobs) to path.
func WriteReport(path string, jobs []*Job) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(Report(jobs)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func percentChange(original, encoded int64) string {
	if original <= 0 {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", float64(encoded-original)/float64(original)*100)
}
