package media

import (
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Record is one physical file in the library. Path is the immutable key.
//
// Attributes and Classification are written only before the record is shared
// or by the worker holding the analysis claim. Compliance state is read and
// written through methods.
type Record struct {
	Path     string
	Filename string
	Size     int64
	ModTime  time.Time

	Attributes     Attributes
	Classification Classification
	Overridden     bool

	mu        sync.Mutex
	status    Status
	issues    []string
	warnings  []string
	analyzing bool
}

// NewRecord creates a record in Unknown state.
func NewRecord(path string, size int64, modTime time.Time) *Record {
	return &Record{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     size,
		ModTime:  modTime,
		status:   StatusUnknown,
	}
}

// Status returns the current compliance status.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Issues returns a copy of the ordered issue list.
func (r *Record) Issues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.issues)
}

// Warnings returns a copy of the ordered warning list.
func (r *Record) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.warnings)
}

// Analyzing reports whether a worker currently holds the analysis claim.
func (r *Record) Analyzing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyzing
}

// MarkScanning moves a fresh record into Scanning so it is picked up by the probe runner.
func (r *Record) MarkScanning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.analyzing {
		r.status = StatusScanning
	}
}

// TryClaim atomically claims the record for probing. It succeeds only when the
// record is Unknown or Scanning and no other worker holds the claim.
func (r *Record) TryClaim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.analyzing || !r.status.Pending() {
		return false
	}
	r.analyzing = true
	r.status = StatusScanning
	return true
}

// SetAttributes stores probed attributes. Call it while holding the claim.
func (r *Record) SetAttributes(attrs Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attributes = attrs
}

// Finish records the outcome of a probe and releases the claim.
func (r *Record) Finish(status Status, issues, warnings []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.issues = slices.Clone(issues)
	r.warnings = slices.Clone(warnings)
	r.analyzing = false
}

// Abandon releases the claim without a result, returning the record to Unknown.
func (r *Record) Abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzing = false
	r.status = StatusUnknown
}

// SetEvaluation applies a compliance result outside of probing, for example
// after a cache hit or a change of standards. It refuses while a probe holds
// the claim.
func (r *Record) SetEvaluation(status Status, issues, warnings []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.analyzing {
		return false
	}
	r.status = status
	r.issues = slices.Clone(issues)
	r.warnings = slices.Clone(warnings)
	return true
}

// View is an immutable snapshot used for rendering and JSON output.
type View struct {
	Path           string         `json:"path"`
	Filename       string         `json:"filename"`
	Size           int64          `json:"size"`
	ModTime        time.Time      `json:"mod_time"`
	Attributes     Attributes     `json:"attributes"`
	Classification Classification `json:"classification"`
	Overridden     bool           `json:"overridden,omitempty"`
	Status         Status         `json:"status"`
	Issues         []string       `json:"issues,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// View returns a snapshot of the record.
func (r *Record) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return View{
		Path:           r.Path,
		Filename:       r.Filename,
		Size:           r.Size,
		ModTime:        r.ModTime,
		Attributes:     r.Attributes,
		Classification: r.Classification,
		Overridden:     r.Overridden,
		Status:         r.status,
		Issues:         slices.Clone(r.issues),
		Warnings:       slices.Clone(r.warnings),
	}
}
