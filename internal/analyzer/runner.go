package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"librarian/internal/compliance"
	"librarian/internal/logging"
	"librarian/internal/media"
	"librarian/internal/media/ffprobe"
	"librarian/internal/services"
)

const defaultProbeTimeout = 10 * time.Second

// CacheWriter receives successfully probed records.
type CacheWriter interface {
	PutRecord(rec *media.Record)
}

// Options configures the probe pool.
type Options struct {
	Threads int
	Timeout time.Duration
}

// ProgressFunc is called after each probed file with the completed and total
// counts. It is invoked from worker goroutines.
type ProgressFunc func(completed, total int)

// Runner probes records with a bounded worker pool.
type Runner struct {
	prober    Prober
	standards compliance.Standards
	cache     CacheWriter
	opts      Options
	logger    *slog.Logger

	completed atomic.Int64
	total     atomic.Int64
}

// NewRunner constructs a runner. cache may be nil.
func NewRunner(prober Prober, standards compliance.Standards, cache CacheWriter, opts Options, logger *slog.Logger) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	return &Runner{
		prober:    prober,
		standards: standards,
		cache:     cache,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "analyzer"),
	}
}

// WorkerCount returns min(NumCPU, threads, files), and at least one worker
// when there is work.
func WorkerCount(threads, files int) int {
	if files <= 0 {
		return 0
	}
	n := runtime.NumCPU()
	if threads > 0 && threads < n {
		n = threads
	}
	if files < n {
		n = files
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Completed returns the number of files probed in the current or last run.
// It only increases during a run and is safe to read from any goroutine.
func (r *Runner) Completed() int {
	return int(r.completed.Load())
}

// Total returns the number of files queued in the current or last run.
func (r *Runner) Total() int {
	return int(r.total.Load())
}

// ProbeAll probes every record still in Unknown or Scanning state and updates
// it in place. Per-file failures are recorded on the record. The returned
// error is non-nil only when the run was cancelled or the prober could not be
// started.
func (r *Runner) ProbeAll(ctx context.Context, records []*media.Record, progress ProgressFunc) error {
	pending := make([]*media.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil && rec.Status().Pending() {
			pending = append(pending, rec)
		}
	}
	r.completed.Store(0)
	r.total.Store(int64(len(pending)))
	if len(pending) == 0 {
		r.logger.Debug("all files already analyzed")
		return nil
	}

	workers := WorkerCount(r.opts.Threads, len(pending))
	r.logger.Info("probing files",
		logging.Int("files", len(pending)),
		logging.Int("workers", workers),
	)
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	jobs := make(chan *media.Record, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := r.probeOne(runCtx, rec); err != nil {
					abort(err)
					continue
				}
				done := r.completed.Add(1)
				if progress != nil {
					progress(int(done), len(pending))
				}
			}
		}()
	}

enqueue:
	for _, rec := range pending {
		select {
		case jobs <- rec:
		case <-runCtx.Done():
			break enqueue
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil {
		r.logger.Info("probing cancelled",
			logging.Int("completed", r.Completed()),
			logging.Int("files", len(pending)),
		)
		return err
	}
	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(pending)) / elapsed.Seconds()
	}
	r.logger.Info("probing complete",
		logging.Int("files", len(pending)),
		logging.Duration("elapsed", elapsed),
		logging.Float64("files_per_sec", rate),
	)
	return nil
}

// probeOne returns an error only for conditions that must stop the whole run.
func (r *Runner) probeOne(ctx context.Context, rec *media.Record) error {
	if ctx.Err() != nil {
		return nil
	}
	if !rec.TryClaim() {
		r.logger.Debug("skipping record already claimed", logging.String(logging.FieldPath, rec.Path))
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	result, err := r.prober.Probe(probeCtx, rec.Path)
	timedOut := errors.Is(probeCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		switch {
		case ctx.Err() != nil:
			rec.Abandon()
			return nil
		case errors.Is(err, exec.ErrNotFound):
			rec.Abandon()
			return services.Wrap(services.ErrExternalTool, "probe", "start ffprobe", "", err)
		case timedOut:
			r.fail(rec, "Timeout while probing media", services.Wrap(services.ErrTimeout, "probe", "ffprobe", r.opts.Timeout.String(), err))
		case errors.Is(err, ffprobe.ErrInvalidOutput):
			r.fail(rec, fmt.Sprintf("Invalid ffprobe output: %v", err), err)
		default:
			r.fail(rec, fmt.Sprintf("Failed to probe media file: %v", err), err)
		}
		return nil
	}

	attrs, ok := ExtractAttributes(result, rec.Size)
	if !ok {
		r.fail(rec, noVideoIssue, nil)
		return nil
	}
	rec.SetAttributes(attrs)
	outcome := compliance.Evaluate(attrs, r.standards)
	rec.Finish(outcome.Status, outcome.Issues, outcome.Warnings)
	if r.cache != nil {
		r.cache.PutRecord(rec)
	}
	return nil
}

func (r *Runner) fail(rec *media.Record, issue string, err error) {
	rec.Finish(media.StatusError, []string{issue}, nil)
	attrs := []logging.Attr{logging.String(logging.FieldPath, rec.Path), logging.String("issue", issue)}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(r.logger, "probe failed", "probe_failed", "file marked as error", attrs...)
}
