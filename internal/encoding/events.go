package encoding

import "time"

// EventType names a supervisor event.
type EventType string

const (
	EventJobStarted  EventType = "job_started"
	EventProgress    EventType = "progress"
	EventJobComplete EventType = "job_complete"
	EventAllComplete EventType = "all_complete"
)

// Event is delivered to observers in the order it happened.
type Event struct {
	Type     EventType
	JobID    string
	JobIndex int
	JobCount int
	Path     string

	Percent  float64
	FPS      float64
	Speed    float64
	ETA      time.Duration
	BatchETA time.Duration

	Success bool
	Status  JobStatus
	Message string

	Summary Summary
}

// Observer receives supervisor events. Handlers run on the supervisor
// goroutine and must not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Summary counts job outcomes for a run.
type Summary struct {
	Completed int
	Failed    int
	Cancelled int
	Pending   int
	Elapsed   time.Duration
}

// batchTracker estimates the remaining time of a whole run.
type batchTracker struct {
	total     int
	finished  int
	totalTime time.Duration
}

func (b *batchTracker) record(elapsed time.Duration) {
	b.finished++
	b.totalTime += elapsed
}

// eta is the current job's ETA plus the average finished-job duration for
// every job after the current one.
func (b *batchTracker) eta(current time.Duration, index int) time.Duration {
	remaining := b.total - index - 1
	if current < 0 {
		return UnknownETA
	}
	if remaining <= 0 {
		return current
	}
	if b.finished == 0 {
		return UnknownETA
	}
	avg := b.totalTime / time.Duration(b.finished)
	return current + avg*time.Duration(remaining)
}
