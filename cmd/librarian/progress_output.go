package main

import (
	"fmt"
	"io"
	"sync"

	"librarian/internal/encoding"
	"librarian/internal/logging"
)

// probeProgress renders probe counts. On a terminal the line is redrawn in
// place; otherwise only the final count is printed.
type probeProgress struct {
	out         io.Writer
	interactive bool

	mu      sync.Mutex
	printed bool
	last    [2]int
}

func newProbeProgress(out io.Writer) *probeProgress {
	return &probeProgress{out: out, interactive: shouldColorize(out)}
}

// update is called from probe workers.
func (p *probeProgress) update(completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if completed < p.last[0] {
		return
	}
	p.last = [2]int{completed, total}
	if p.interactive {
		fmt.Fprintf(p.out, "%sProbing %d/%d", ansiClear, completed, total)
		p.printed = true
	}
}

func (p *probeProgress) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last[1] == 0 {
		return
	}
	if p.interactive && p.printed {
		fmt.Fprint(p.out, ansiClear)
	}
	fmt.Fprintf(p.out, "Probed %d/%d files\n", p.last[0], p.last[1])
}

// encodeProgress prints supervisor events. Progress is redrawn in place on a
// terminal and sampled to 10% steps elsewhere.
type encodeProgress struct {
	out         io.Writer
	interactive bool
	colorize    bool
	sampler     *logging.ProgressSampler
	inLine      bool
}

func newEncodeProgress(out io.Writer) *encodeProgress {
	tty := shouldColorize(out)
	return &encodeProgress{
		out:         out,
		interactive: tty,
		colorize:    tty,
		sampler:     logging.NewProgressSampler(10),
	}
}

// OnEvent implements encoding.Observer. Events arrive on the supervisor
// goroutine one at a time.
func (p *encodeProgress) OnEvent(e encoding.Event) {
	switch e.Type {
	case encoding.EventJobStarted:
		p.endLine()
		fmt.Fprintf(p.out, "[%d/%d] %s\n", e.JobIndex+1, e.JobCount, e.Path)
	case encoding.EventProgress:
		line := progressLine(e)
		if p.interactive {
			fmt.Fprintf(p.out, "%s  %s", ansiClear, line)
			p.inLine = true
			return
		}
		if p.sampler.ShouldLog(e.JobID, e.Percent) {
			fmt.Fprintf(p.out, "  %s\n", line)
		}
	case encoding.EventJobComplete:
		p.endLine()
		fmt.Fprintln(p.out, renderStatusLine("Result", jobKind(e.Status), e.Message, p.colorize))
	case encoding.EventAllComplete:
		p.endLine()
		s := e.Summary
		fmt.Fprintf(p.out, "Done in %s: %d completed, %d failed, %d cancelled, %d not started\n",
			encoding.FormatETA(s.Elapsed), s.Completed, s.Failed, s.Cancelled, s.Pending)
	}
}

func (p *encodeProgress) endLine() {
	if p.inLine {
		fmt.Fprintln(p.out)
		p.inLine = false
	}
}

func progressLine(e encoding.Event) string {
	line := encoding.ProgressMessage(encoding.Progress{
		Percent: e.Percent,
		FPS:     e.FPS,
		Speed:   e.Speed,
		ETA:     e.ETA,
	})
	if e.FPS > 0 {
		line += fmt.Sprintf(" %.1f fps", e.FPS)
	}
	if e.BatchETA >= 0 && e.JobIndex+1 < e.JobCount {
		line += " | all jobs ETA " + encoding.FormatETA(e.BatchETA)
	}
	return line
}
