package encoding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"librarian/internal/logging"
	"librarian/internal/services"
)

// Cancellation tuning. Variables so tests can shorten them.
var (
	forceKillWait        = 2 * time.Second
	partialRemoveRetries = 5
	partialRemoveDelay   = 500 * time.Millisecond
)

const cancelledMessage = "Cancelled by user"

// Supervisor runs encode jobs strictly one at a time.
type Supervisor struct {
	opts     Options
	builder  *Builder
	launcher Launcher
	logger   *slog.Logger

	mu        sync.Mutex
	observers []Observer
	jobs      []*Job
	running   bool
	cancel    context.CancelFunc
}

// NewSupervisor constructs a supervisor. A nil launcher uses ExecLauncher.
func NewSupervisor(opts Options, builder *Builder, launcher Launcher, logger *slog.Logger) *Supervisor {
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	return &Supervisor{
		opts:     opts,
		builder:  builder,
		launcher: launcher,
		logger:   logging.NewComponentLogger(logger, "supervisor"),
	}
}

// Subscribe registers an observer for all subsequent events.
func (s *Supervisor) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Jobs returns the jobs of the current or last run.
func (s *Supervisor) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// Stop cancels the running job and skips the remaining ones. It is safe to
// call from any goroutine and a no-op when nothing is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run encodes jobs in order. Per-job failures are recorded on the job; the
// returned error is non-nil only when the encoder binary cannot be started
// at all or a run is already in progress. Cancelling ctx or calling Stop
// cancels the current job and leaves later jobs pending.
func (s *Supervisor) Run(ctx context.Context, jobs []*Job) (Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, services.Wrap(services.ErrValidation, "encode", "run", "an encode run is already in progress", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.jobs = jobs
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	s.logger.Info("encode run started", logging.Int("jobs", len(jobs)))
	tracker := &batchTracker{total: len(jobs)}
	var runErr error
	for i, job := range jobs {
		if runCtx.Err() != nil {
			break
		}
		if err := s.runJob(runCtx, i, job, tracker); err != nil {
			runErr = err
			break
		}
	}

	summary := summarize(jobs)
	summary.Elapsed = time.Since(start)
	s.emit(Event{Type: EventAllComplete, JobCount: len(jobs), Summary: summary})
	s.logger.Info("encode run finished",
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Int("pending", summary.Pending),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, runErr
}

type waitResult struct {
	code int
	err  error
}

func waitAsync(proc Process) <-chan waitResult {
	ch := make(chan waitResult, 1)
	go func() {
		code, err := proc.Wait()
		ch <- waitResult{code: code, err: err}
	}()
	return ch
}

func (s *Supervisor) runJob(ctx context.Context, index int, job *Job, tracker *batchTracker) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldPath, job.Input))
	count := tracker.total

	job.setStatus(JobStarting)
	s.emit(Event{Type: EventJobStarted, JobID: job.ID, JobIndex: index, JobCount: count, Path: job.Input, ETA: UnknownETA, BatchETA: UnknownETA})

	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		s.complete(logger, tracker, index, job, JobFailed, fmt.Sprintf("Failed to start encoder: %v", err), 0)
		return nil
	}
	binary := s.opts.ffmpegBinary()
	attrs := job.Attributes()
	args := s.builder.BuildCommand(ctx, attrs, job.Input, job.Output)
	logger.Info("launching encoder", logging.String("command", binary+" "+strings.Join(args, " ")))

	proc, err := s.launcher.Start(binary, args)
	if err != nil {
		s.complete(logger, tracker, index, job, JobFailed, fmt.Sprintf("Failed to start encoder: %v", err), 0)
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrExternalTool, "encode", "start ffmpeg", "", err)
		}
		return nil
	}
	job.setStatus(JobRunning)

	lines := make(chan string, 16)
	quit := make(chan struct{})
	defer close(quit)
	go readLines(proc.Output(), lines, quit)

	totalFrames := attrs.TotalFrames()
	sampler := logging.NewProgressSampler(10)
	for lines != nil {
		select {
		case <-ctx.Done():
			s.cancelJob(logger, proc, nil, job)
			s.complete(logger, tracker, index, job, JobCancelled, cancelledMessage, 0)
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			sample, ok := ParseProgressLine(line)
			if !ok {
				continue
			}
			// Without a frame count or duration the line still reports fps and
			// speed; percent stays at zero and both ETAs are unknown.
			progress, known := ComputeProgress(sample, totalFrames, attrs.DurationSeconds)
			batchETA := UnknownETA
			if known {
				batchETA = tracker.eta(progress.ETA, index)
			}
			job.setProgress(progress)
			s.emit(Event{
				Type:     EventProgress,
				JobID:    job.ID,
				JobIndex: index,
				JobCount: count,
				Path:     job.Input,
				Percent:  progress.Percent,
				FPS:      progress.FPS,
				Speed:    progress.Speed,
				ETA:      progress.ETA,
				BatchETA: batchETA,
			})
			if known && sampler.ShouldLog(job.ID, progress.Percent) {
				logger.Info("encode progress", logging.String("progress", ProgressMessage(progress)))
			}
		}
	}

	waitCh := waitAsync(proc)
	var result waitResult
	select {
	case result = <-waitCh:
	case <-ctx.Done():
		s.cancelJob(logger, proc, waitCh, job)
		s.complete(logger, tracker, index, job, JobCancelled, cancelledMessage, 0)
		return nil
	}

	switch {
	case result.err != nil:
		s.complete(logger, tracker, index, job, JobFailed, result.err.Error(), 0)
	case result.code != 0:
		s.complete(logger, tracker, index, job, JobFailed, fmt.Sprintf("FFmpeg exited with code %d", result.code), 0)
	default:
		info, err := os.Stat(job.Output)
		if err != nil || info.Size() == 0 {
			s.complete(logger, tracker, index, job, JobFailed, "Output file is empty or missing", 0)
			return nil
		}
		s.complete(logger, tracker, index, job, JobCompleted, successMessage(job.SourceSize, info.Size()), info.Size())
	}
	return nil
}

// cancelJob stops the process tree and removes the partial output. Every wait
// is bounded; the force kill is the unconditional exit path.
func (s *Supervisor) cancelJob(logger *slog.Logger, proc Process, waitCh <-chan waitResult, job *Job) {
	logger.Info("cancelling encode")
	if waitCh == nil {
		waitCh = waitAsync(proc)
	}
	if err := proc.Terminate(); err != nil {
		logger.Debug("graceful stop failed", logging.Error(err))
	}
	if !waitWithin(waitCh, s.opts.stopTimeout()) {
		logger.Info("encoder still running after stop timeout; killing process group",
			logging.Duration("stop_timeout", s.opts.stopTimeout()))
		if err := proc.Kill(); err != nil {
			logger.Debug("force kill failed", logging.Error(err))
		}
		if !waitWithin(waitCh, forceKillWait) {
			logging.WarnWithContext(logger, "encoder did not exit after force kill",
				"encoder_kill_timeout", "process may still be running")
		}
	}
	if err := removePartial(job.Output); err != nil {
		logging.WarnWithContext(logger, "could not remove partial output",
			"partial_output_left", "incomplete file remains on disk",
			logging.String("output", job.Output),
			logging.Error(err),
		)
	}
}

func waitWithin(ch <-chan waitResult, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

func removePartial(path string) error {
	var err error
	for attempt := 0; attempt < partialRemoveRetries; attempt++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		time.Sleep(partialRemoveDelay)
	}
	return err
}

func (s *Supervisor) complete(logger *slog.Logger, tracker *batchTracker, index int, job *Job, status JobStatus, message string, outputSize int64) {
	job.finish(status, message, outputSize)
	snapshot := job.Snapshot()
	if status != JobCancelled {
		tracker.record(snapshot.Elapsed())
	}
	switch status {
	case JobCompleted:
		logger.Info("encode completed", logging.String("result", message), logging.Duration("elapsed", snapshot.Elapsed()))
	case JobFailed:
		logging.WarnWithContext(logger, "encode failed", "encode_failed", "original left untouched",
			logging.String("reason", message))
	default:
		logger.Info("encode cancelled")
	}
	s.emit(Event{
		Type:     EventJobComplete,
		JobID:    job.ID,
		JobIndex: index,
		JobCount: tracker.total,
		Path:     job.Input,
		Percent:  snapshot.Percent,
		Success:  status == JobCompleted,
		Status:   status,
		Message:  message,
		ETA:      UnknownETA,
		BatchETA: UnknownETA,
	})
}

func (s *Supervisor) emit(e Event) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.OnEvent(e)
	}
}

func summarize(jobs []*Job) Summary {
	var summary Summary
	for _, job := range jobs {
		switch job.Status() {
		case JobCompleted:
			summary.Completed++
		case JobFailed:
			summary.Failed++
		case JobCancelled:
			summary.Cancelled++
		default:
			summary.Pending++
		}
	}
	return summary
}

func successMessage(original, encoded int64) string {
	change := 0.0
	if original > 0 {
		change = float64(encoded-original) / float64(original) * 100
	}
	return fmt.Sprintf("Encoding successful. Size: %s → %s (%+.1f%%)",
		humanize.Bytes(uint64(max(original, 0))), humanize.Bytes(uint64(encoded)), change)
}
