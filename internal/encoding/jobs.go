package encoding

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"librarian/internal/media"
)

// Mode selects which records become jobs.
type Mode string

const (
	// ModeSelected encodes every record that is not already acceptable.
	ModeSelected Mode = "selected"
	// ModeHighQuality restricts ModeSelected to sources of 1080 lines or more.
	ModeHighQuality Mode = "high_quality"
)

// ParseMode accepts the CLI spelling of a mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")) {
	case "", ModeSelected:
		return ModeSelected, nil
	case ModeHighQuality, "hq":
		return ModeHighQuality, nil
	default:
		return "", fmt.Errorf("unknown encode mode %q (want selected or high_quality)", value)
	}
}

// JobStatus is the supervisor state of one job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobStarting  JobStatus = "starting"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one encode. It refers to the record it was prepared from rather
// than copying it, so attributes are read from the record when the command
// is built. Identity fields are fixed at preparation; the mutable state is
// written by the supervisor and read through Snapshot.
type Job struct {
	ID         string
	Record     *media.Record
	Input      string
	Output     string
	SourceSize int64

	mu         sync.RWMutex
	status     JobStatus
	percent    float64
	fps        float64
	speed      float64
	eta        time.Duration
	message    string
	outputSize int64
	started    time.Time
	finished   time.Time
}

// JobSnapshot is a point-in-time copy of a job.
type JobSnapshot struct {
	ID         string           `json:"id"`
	Input      string           `json:"input"`
	Output     string           `json:"output"`
	SourceSize int64            `json:"source_size"`
	Category   media.Category   `json:"category"`
	Attributes media.Attributes `json:"attributes"`
	Status     JobStatus        `json:"status"`
	Percent    float64          `json:"percent"`
	FPS        float64          `json:"fps,omitempty"`
	Speed      float64          `json:"speed,omitempty"`
	ETA        time.Duration    `json:"eta,omitempty"`
	Message    string           `json:"message,omitempty"`
	OutputSize int64            `json:"output_size,omitempty"`
	Started    time.Time        `json:"started,omitzero"`
	Finished   time.Time        `json:"finished,omitzero"`
}

// Elapsed returns how long the job ran, or zero if it never started.
func (s JobSnapshot) Elapsed() time.Duration {
	if s.Started.IsZero() || s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// NewJob creates a pending job for rec writing to output.
func NewJob(rec *media.Record, output string) *Job {
	view := rec.View()
	return &Job{
		ID:         uuid.NewString(),
		Record:     rec,
		Input:      view.Path,
		Output:     output,
		SourceSize: view.Size,
		status:     JobPending,
		eta:        UnknownETA,
	}
}

// Attributes returns the record's current probed attributes.
func (j *Job) Attributes() media.Attributes {
	if j.Record == nil {
		return media.Attributes{}
	}
	return j.Record.View().Attributes
}

// Snapshot returns the current job state.
func (j *Job) Snapshot() JobSnapshot {
	var view media.View
	if j.Record != nil {
		view = j.Record.View()
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobSnapshot{
		ID:         j.ID,
		Input:      j.Input,
		Output:     j.Output,
		SourceSize: j.SourceSize,
		Category:   view.Classification.Category,
		Attributes: view.Attributes,
		Status:     j.status,
		Percent:    j.percent,
		FPS:        j.fps,
		Speed:      j.speed,
		ETA:        j.eta,
		Message:    j.message,
		OutputSize: j.outputSize,
		Started:    j.started,
		Finished:   j.finished,
	}
}

// Status returns the current job status.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Job) setStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	if status == JobStarting {
		j.started = time.Now()
	}
}

func (j *Job) setProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.percent = p.Percent
	j.fps = p.FPS
	j.speed = p.Speed
	j.eta = p.ETA
}

func (j *Job) finish(status JobStatus, message string, outputSize int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.message = message
	j.outputSize = outputSize
	j.finished = time.Now()
	if status == JobCompleted {
		j.percent = 100
		j.eta = 0
	}
}

// OutputPath returns <dir>/<outputDirName>/<stem><suffix><ext> for input.
func OutputPath(input, outputDirName, suffix string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, outputDirName, stem+suffix+ext)
}

// PrepareJobs selects the records to encode. Compliant and BelowStandard
// records are skipped, as are extras when IgnoreExtras is set. In
// ModeHighQuality only sources with a height of at least 1080 are kept.
func PrepareJobs(records []*media.Record, opts Options, mode Mode) []*Job {
	outputDir := opts.OutputDirName
	if outputDir == "" {
		outputDir = "encoded"
	}
	suffix := opts.OutputSuffix
	if suffix == "" {
		suffix = ".encoded"
	}

	jobs := make([]*Job, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		switch rec.Status() {
		case media.StatusCompliant, media.StatusBelowStandard:
			continue
		}
		if opts.IgnoreExtras && rec.Classification.Category == media.CategoryExtra {
			continue
		}
		if mode == ModeHighQuality && rec.Attributes.Height < 1080 {
			continue
		}
		jobs = append(jobs, NewJob(rec, OutputPath(rec.Path, outputDir, suffix)))
	}
	return jobs
}
