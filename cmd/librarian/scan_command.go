package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"librarian/internal/media"
)

type scanFlags struct {
	noRecursive bool
	threads     int
	status      string
	json        bool
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Classify and probe every media file under a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := requireRoot(args)
			if err != nil {
				return err
			}
			var filter media.Status
			if strings.TrimSpace(flags.status) != "" {
				parsed, ok := media.ParseStatus(strings.ReplaceAll(flags.status, "-", "_"))
				if !ok {
					return fmt.Errorf("unknown status %q", flags.status)
				}
				filter = parsed
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if flags.noRecursive {
				cfg.Scan.Recursive = false
			}
			if flags.threads > 0 {
				cfg.Scan.Threads = flags.threads
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx := ctx.runContext(cmd)
			cache := openLibraryCache(runCtx, cfg, logger)
			defer cache.Close()

			progress := newProbeProgress(cmd.ErrOrStderr())
			result, err := analyzeLibrary(runCtx, cfg, cache, root, logger, progress.update)
			progress.done()
			if err != nil {
				return err
			}

			if flags.json {
				return writeReport(cmd.OutOrStdout(), newScanReport(result, filter))
			}
			out := cmd.OutOrStdout()
			printScanTable(out, result.Summary.Root, recordViews(result.Records, filter))
			fmt.Fprintln(out, result.Summary.Describe())
			printStatusCounts(out, statusCounts(result.Records), shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.noRecursive, "no-recursive", false, "Only scan the top level of the root")
	cmd.Flags().IntVar(&flags.threads, "threads", 0, "Probe worker count (defaults to scan.threads)")
	cmd.Flags().StringVar(&flags.status, "status", "", "Only list files with this status (compliant, needs_reencoding, below_standard, error)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Emit JSON instead of a table")
	return cmd
}

func recordViews(records []*media.Record, filter media.Status) []media.View {
	views := make([]media.View, 0, len(records))
	for _, rec := range records {
		view := rec.View()
		if filter != "" && view.Status != filter {
			continue
		}
		views = append(views, view)
	}
	return views
}

func statusCounts(records []*media.Record) map[media.Status]int {
	counts := make(map[media.Status]int)
	for _, rec := range records {
		counts[rec.Status()]++
	}
	return counts
}

var statusOrder = []media.Status{
	media.StatusCompliant,
	media.StatusNeedsReencoding,
	media.StatusBelowStandard,
	media.StatusError,
	media.StatusUnknown,
}

func printStatusCounts(out io.Writer, counts map[media.Status]int, colorize bool) {
	for _, status := range statusOrder {
		n := counts[status]
		if n == 0 && status == media.StatusUnknown {
			continue
		}
		fmt.Fprintln(out, renderStatusLine(status.Label(), complianceKind(status), strconv.Itoa(n), colorize))
	}
}

func printScanTable(out io.Writer, root string, views []media.View) {
	if len(views) == 0 {
		fmt.Fprintln(out, "No matching files")
		return
	}
	headers := []string{"File", "Classification", "Resolution", "Codec", "Bitrate", "Size", "Status", "Notes"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			displayPath(root, v.Path),
			v.Classification.Label(),
			v.Attributes.Resolution(),
			v.Attributes.VideoCodec,
			formatKbps(v.Attributes.BitrateKbps),
			humanize.Bytes(uint64(max(v.Size, 0))),
			v.Status.Label(),
			notes(v),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func displayPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func formatKbps(kbps int) string {
	if kbps <= 0 {
		return ""
	}
	return fmt.Sprintf("%d kbps", kbps)
}

func notes(v media.View) string {
	parts := append([]string(nil), v.Issues...)
	parts = append(parts, v.Warnings...)
	if v.Overridden {
		parts = append(parts, "manual override")
	}
	return strings.Join(parts, "; ")
}
