package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"librarian/internal/encoding"
	"librarian/internal/replace"
	"librarian/internal/services"
)

type encodeFlags struct {
	mode    string
	dryRun  bool
	report  string
	replace bool
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode <root>",
		Short: "Re-encode files that need it, one at a time",
		Long: "Scans the root, selects every file that is not already compliant or below\n" +
			"standard, and encodes them sequentially with ffmpeg. Ctrl-C cancels the\n" +
			"current job, removes its partial output and skips the rest.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := requireRoot(args)
			if err != nil {
				return err
			}
			mode, err := encoding.ParseMode(flags.mode)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx := ctx.runContext(cmd)
			sigCtx, stopSignals := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
			defer stopSignals()

			var lock *encoding.RunLock
			if !flags.dryRun {
				lock, err = encoding.AcquireRunLock(cfg.Paths.LockPath)
				if err != nil {
					return err
				}
				defer lock.Release()
			}

			cache := openLibraryCache(runCtx, cfg, logger)
			defer cache.Close()

			out := cmd.OutOrStdout()
			progress := newProbeProgress(cmd.ErrOrStderr())
			library, err := analyzeLibrary(sigCtx, cfg, cache, root, logger, progress.update)
			progress.done()
			if err != nil {
				return err
			}

			opts := encodingOptions(cfg)
			jobs := encoding.PrepareJobs(library.Records, opts, mode)
			if len(jobs) == 0 {
				fmt.Fprintf(out, "Nothing to encode (%s)\n", library.Summary.Describe())
				return nil
			}

			caps := encoding.NewFFmpegCapabilities(cfg.Tools.FFmpeg)
			builder := encoding.NewBuilder(opts, caps, logger)
			if flags.dryRun {
				printPlannedJobs(sigCtx, out, builder, root, jobs)
				return nil
			}

			supervisor := encoding.NewSupervisor(opts, builder, nil, logger)
			supervisor.Subscribe(newEncodeProgress(out))
			runDone := make(chan struct{})
			defer close(runDone)
			go func() {
				select {
				case <-sigCtx.Done():
					fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping current encode...")
					supervisor.Stop()
				case <-runDone:
				}
			}()

			summary, runErr := supervisor.Run(services.WithStage(runCtx, "encode"), jobs)
			finishCtx := context.WithoutCancel(runCtx)
			if summary.Completed > 0 {
				fmt.Fprintln(out, encoding.Report(jobs))
			}
			if path := strings.TrimSpace(flags.report); path != "" {
				if err := encoding.WriteReport(path, jobs); err != nil {
					return err
				}
				fmt.Fprintf(out, "Report written to %s\n", path)
			}

			replaceOpts := replaceOptions(cfg)
			if flags.replace {
				replaceOpts.ReplaceSmaller = true
			}
			if replaceOpts.ReplaceSmaller || replaceOpts.RemoveLarger {
				replacer := replace.New(replaceOpts, cache, logger)
				outcomes, err := replacer.ApplyAll(finishCtx, snapshots(jobs))
				printReplaceOutcomes(out, root, outcomes)
				if err != nil && runErr == nil {
					runErr = err
				}
			}

			if runErr != nil {
				return runErr
			}
			if sigCtx.Err() != nil {
				return services.Wrap(services.ErrCancelled, "encode", "run", "interrupted", context.Canceled)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d encodes failed", summary.Failed, len(jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", string(encoding.ModeSelected), "Job selection: selected or high_quality")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the planned jobs and ffmpeg commands without encoding")
	cmd.Flags().StringVar(&flags.report, "report", "", "Write the size comparison report to this file")
	cmd.Flags().BoolVar(&flags.replace, "replace", false, "Replace originals with smaller encodes (overrides replace.replace_smaller)")
	return cmd
}

func snapshots(jobs []*encoding.Job) []encoding.JobSnapshot {
	out := make([]encoding.JobSnapshot, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

func printPlannedJobs(ctx context.Context, out io.Writer, builder *encoding.Builder, root string, jobs []*encoding.Job) {
	codec, gpu := builder.ResolveCodec(ctx)
	label := codec
	if gpu {
		label += " (GPU)"
	}
	fmt.Fprintf(out, "%d job(s) planned with %s\n", len(jobs), label)
	for i, job := range jobs {
		args := builder.BuildCommand(ctx, job.Attributes(), job.Input, job.Output)
		fmt.Fprintf(out, "[%d/%d] %s -> %s\n", i+1, len(jobs), displayPath(root, job.Input), displayPath(root, job.Output))
		fmt.Fprintf(out, "  ffmpeg %s\n", shellJoin(args))
	}
}

func printReplaceOutcomes(out io.Writer, root string, outcomes []replace.Outcome) {
	var saved int64
	for _, outcome := range outcomes {
		switch outcome.Action {
		case replace.ActionReplaced:
			saved += outcome.SavedBytes
			fmt.Fprintf(out, "Replaced %s (saved %s)\n", displayPath(root, outcome.Input), humanize.Bytes(uint64(outcome.SavedBytes)))
		case replace.ActionRemovedLarger:
			fmt.Fprintf(out, "Removed larger encode of %s\n", displayPath(root, outcome.Input))
		}
	}
	if saved > 0 {
		fmt.Fprintf(out, "Total saved: %s\n", humanize.Bytes(uint64(saved)))
	}
}

// shellJoin quotes arguments containing spaces for display.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
			continue
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}
