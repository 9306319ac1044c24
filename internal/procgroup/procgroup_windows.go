//go:build windows

package procgroup

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// Prepare starts cmd in a new process group so taskkill /T can reach its tree.
func Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

// Terminate asks the process tree rooted at pid to close.
func Terminate(pid int) error {
	return taskkill(pid, false)
}

// Kill force-kills the process tree rooted at pid.
func Kill(pid int) error {
	return taskkill(pid, true)
}

func taskkill(pid int, force bool) error {
	if pid <= 0 {
		return fmt.Errorf("procgroup: invalid pid %d", pid)
	}
	args := []string{"/PID", strconv.Itoa(pid), "/T"}
	if force {
		args = append(args, "/F")
	}
	output, err := exec.Command("taskkill", args...).CombinedOutput()
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(string(output))
	// 128: no such process.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 128 {
		return nil
	}
	return fmt.Errorf("procgroup: taskkill %d: %w: %s", pid, err, detail)
}
