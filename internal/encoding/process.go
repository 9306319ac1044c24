package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"librarian/internal/procgroup"
)

// Process is a started encoder.
type Process interface {
	// Output streams the encoder's stderr. It reaches EOF once the process
	// and every helper holding the stream have exited. Read it to EOF before
	// calling Wait; Wait releases the stream.
	Output() io.Reader
	// Wait blocks until exit. err is non-nil only when the exit status could
	// not be collected; a non-zero exit is reported through exitCode.
	Wait() (exitCode int, err error)
	// Terminate asks the process tree to stop.
	Terminate() error
	// Kill force-kills the process tree.
	Kill() error
}

// Launcher starts encoder processes.
type Launcher interface {
	Start(binary string, args []string) (Process, error)
}

// ExecLauncher starts real processes, each leading its own process group.
type ExecLauncher struct{}

// Start implements Launcher.
func (ExecLauncher) Start(binary string, args []string) (Process, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(binary, args...)
	cmd.Stderr = writer
	procgroup.Prepare(cmd)
	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	_ = writer.Close()
	return &execProcess{cmd: cmd, output: reader}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (p *execProcess) Output() io.Reader { return p.output }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	_ = p.output.Close()
	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return code, err
	}
	return code, nil
}

func (p *execProcess) Terminate() error { return procgroup.Terminate(p.cmd.Process.Pid) }

func (p *execProcess) Kill() error { return procgroup.Kill(p.cmd.Process.Pid) }

// ScanLines splits on both '\r' and '\n'; ffmpeg rewrites its stats line
// in place with carriage returns.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// readLines forwards non-empty lines from r until EOF or quit is closed.
func readLines(r io.Reader, lines chan<- string, quit <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(ScanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		select {
		case lines <- line:
		case <-quit:
			return
		}
	}
}
