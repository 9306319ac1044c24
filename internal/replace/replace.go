package replace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"librarian/internal/encoding"
	"librarian/internal/fileutil"
	"librarian/internal/logging"
	"librarian/internal/services"
)

// Options mirrors the [replace] configuration section.
type Options struct {
	ReplaceSmaller bool
	RemoveLarger   bool
}

// Action records what Apply did with a job's output.
type Action string

const (
	ActionReplaced      Action = "replaced"
	ActionRemovedLarger Action = "removed_larger"
	ActionKept          Action = "kept"
	ActionSkipped       Action = "skipped"
)

// Outcome describes one applied job.
type Outcome struct {
	Action     Action
	Input      string
	Output     string
	Final      string
	SavedBytes int64
}

// CacheInvalidator drops cached analysis for a path.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, path string)
}

// Replacer applies Options to finished jobs.
type Replacer struct {
	opts   Options
	cache  CacheInvalidator
	logger *slog.Logger
}

// New builds a Replacer. cache may be nil.
func New(opts Options, cache CacheInvalidator, logger *slog.Logger) *Replacer {
	return &Replacer{
		opts:   opts,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "replace"),
	}
}

// ApplyAll runs Apply over every job and returns the outcomes in order.
// Failures are logged and do not stop the remaining jobs; the first one is
// returned.
func (r *Replacer) ApplyAll(ctx context.Context, jobs []encoding.JobSnapshot) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(jobs))
	var firstErr error
	for _, job := range jobs {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		outcome, err := r.Apply(ctx, job)
		if err != nil {
			r.logger.Error("replace failed",
				logging.String(logging.FieldPath, job.Input),
				logging.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, firstErr
}

// Apply handles one job. Jobs that did not complete are skipped.
func (r *Replacer) Apply(ctx context.Context, job encoding.JobSnapshot) (Outcome, error) {
	outcome := Outcome{Action: ActionSkipped, Input: job.Input, Output: job.Output}
	if job.Status != encoding.JobCompleted {
		return outcome, nil
	}

	encodedInfo, err := os.Stat(job.Output)
	if err != nil {
		return outcome, services.Wrap(services.ErrNotFound, "replace", "stat encoded", "Encoded output is missing", err)
	}
	originalInfo, err := os.Stat(job.Input)
	if err != nil {
		return outcome, services.Wrap(services.ErrNotFound, "replace", "stat original", "Original file is missing", err)
	}

	if encodedInfo.Size() < originalInfo.Size() {
		if !r.opts.ReplaceSmaller {
			outcome.Action = ActionKept
			return outcome, nil
		}
		if err := r.swap(ctx, job.Input, job.Output); err != nil {
			return outcome, err
		}
		outcome.Action = ActionReplaced
		outcome.Final = job.Input
		outcome.SavedBytes = originalInfo.Size() - encodedInfo.Size()
		r.logger.Info("original replaced",
			logging.String(logging.FieldPath, job.Input),
			logging.String("saved", humanize.Bytes(uint64(outcome.SavedBytes))))
		return outcome, nil
	}

	if !r.opts.RemoveLarger {
		outcome.Action = ActionKept
		return outcome, nil
	}
	if err := os.Remove(job.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return outcome, services.Wrap(services.ErrTransient, "replace", "remove larger", "Failed to remove larger encode", err)
	}
	removeIfEmpty(filepath.Dir(job.Output))
	outcome.Action = ActionRemovedLarger
	r.logger.Info("larger encode removed",
		logging.String(logging.FieldPath, job.Output),
		logging.String("original_size", humanize.Bytes(uint64(originalInfo.Size()))),
		logging.String("encoded_size", humanize.Bytes(uint64(encodedInfo.Size()))))
	return outcome, nil
}

// swap moves output over input so the library keeps the original name and
// extension.
func (r *Replacer) swap(ctx context.Context, input, output string) error {
	if err := fileutil.MoveFile(output, input); err != nil {
		if !errors.Is(err, fileutil.ErrSourceNotRemoved) {
			return services.Wrap(services.ErrTransient, "replace", "move encoded", fmt.Sprintf("Failed to move %q over the original", output), err)
		}
		logging.WarnWithContext(r.logger, "encoded copy left behind after cross-device move",
			"replace_cleanup_failed",
			"a duplicate of the encoded file remains in the output folder",
			logging.String(logging.FieldPath, output),
			logging.Error(err))
	}
	removeIfEmpty(filepath.Dir(output))
	if r.cache != nil {
		r.cache.Invalidate(ctx, input)
	}
	return nil
}

// removeIfEmpty drops the encoder output folder once nothing is left in it.
func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
